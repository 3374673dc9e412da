package profile

// Control word (conf0) field positions. The layout is shared by every
// generation; fields a generation does not implement are left zero.
const (
	Conf0StreaminSigned   = 1 << 28
	Conf0OutfeatSigned    = 1 << 27
	Conf0ActivationSigned = 1 << 26
	Conf0NormBias         = 1 << 25
	Conf0NormShift        = 1 << 24
	Conf0QuantIdentity    = 1 << 23
	Conf0Streamin         = 1 << 14
	Conf0Rounding         = 1 << 11
	Conf0ActivPrefetch    = 1 << 10
	Conf0WeightSourceWmem = 1 << 9
	Conf0Stride2x2        = 1 << 8
	Conf0LinearMode       = 1 << 7
	Conf0NormQuant        = 1 << 4
	Conf0Mode16           = 1 << 3
)

// Multi-bit fields
const (
	Conf0QuantModeShift = 21
	Conf0QuantMode8     = 0 << Conf0QuantModeShift
	Conf0QuantMode16    = 1 << Conf0QuantModeShift
	Conf0QuantMode32    = 2 << Conf0QuantModeShift

	Conf0ShiftAmountShift = 16

	Conf0WeightOffsetLayerWise = 1 << 15
	Conf0WeightOffsetSymmetric = 0

	Conf0NormModeShift = 12
	Conf0NormMode8     = 0 << Conf0NormModeShift
	Conf0NormMode16    = 1 << Conf0NormModeShift
	Conf0NormMode32    = 2 << Conf0NormModeShift

	Conf0ModeShift     = 5
	Conf0Mode3x3       = 0 << Conf0ModeShift
	Conf0Mode3x3DW     = 1 << Conf0ModeShift
	Conf0Mode1x1       = 2 << Conf0ModeShift
	Conf0WeightBitsMax = 8
)

// Field masks for read-modify-write updates
const (
	Conf0MaskQuantFunction = 1 << 23
	Conf0MaskQuantMode     = 3 << 21
	Conf0MaskShiftAmount   = 0x1f << 16
	Conf0MaskWeightOffset  = 1 << 15
	Conf0MaskNormMode      = 3 << 12
	Conf0MaskRounding      = 1 << 11
	Conf0MaskActivPrefetch = 1 << 10
	Conf0MaskWeightSource  = 1 << 9
	Conf0MaskStride2x2     = 1 << 8
	Conf0MaskMode          = 3 << 5
	Conf0MaskMode16        = 1 << 3
	Conf0MaskWeightBits    = 7
)
