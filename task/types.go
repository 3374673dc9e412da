package task

import (
	"fmt"

	"github.com/LynnColeArt/nnx/profile"
)

// QuantFunction selects the activation applied after requantization.
type QuantFunction int

const (
	QuantFunctionReLU QuantFunction = iota
	QuantFunctionIdentity
)

func (f QuantFunction) String() string {
	switch f {
	case QuantFunctionReLU:
		return "relu"
	case QuantFunctionIdentity:
		return "identity"
	default:
		return fmt.Sprintf("QuantFunction(%d)", int(f))
	}
}

// Quant describes the requantization stage.
type Quant struct {
	// Right shift applied after scaling, 0-31
	ShiftAmount uint8
	Function    QuantFunction
	Rounding    bool
}

// NormMode is the bit width of the scale parameters.
type NormMode int

const (
	NormMode8Bit NormMode = iota
	NormMode16Bit
	NormMode32Bit
)

func (m NormMode) bits() uint32 {
	switch m {
	case NormMode16Bit:
		return profile.Conf0NormMode16
	case NormMode32Bit:
		return profile.Conf0NormMode32
	default:
		return profile.Conf0NormMode8
	}
}

// Norm describes the normalization stage.
type Norm struct {
	Mode  NormMode
	Bias  bool
	Shift bool
}

// WeightOffsetMode selects how the weight zero point is applied.
type WeightOffsetMode int

const (
	WeightOffsetSymmetric WeightOffsetMode = iota
	WeightOffsetLayerWise
)

func (m WeightOffsetMode) String() string {
	switch m {
	case WeightOffsetSymmetric:
		return "symmetric"
	case WeightOffsetLayerWise:
		return "layer-wise"
	default:
		return fmt.Sprintf("WeightOffsetMode(%d)", int(m))
	}
}

// WeightSource selects where the accelerator streams weights from.
type WeightSource int

const (
	// Shared cluster L1 (TCDM)
	WeightSourceTCDM WeightSource = iota
	// Dedicated weight memory
	WeightSourceWmem
)

func (s WeightSource) String() string {
	switch s {
	case WeightSourceTCDM:
		return "tcdm"
	case WeightSourceWmem:
		return "wmem"
	default:
		return fmt.Sprintf("WeightSource(%d)", int(s))
	}
}

// Stride is a three level byte stride triple.
type Stride struct {
	D0, D1, D2 uint32
}

// SubtileRemainder holds the packed extents of the last subtile.
type SubtileRemainder struct {
	KoKi uint32
	HoWo uint32
	HiWi uint32
}

// SubtileNumber holds the packed subtile counts.
type SubtileNumber struct {
	KoKi uint32
	HoWo uint32
}

// Subtile groups the counters written to the job registers.
type Subtile struct {
	Remainder SubtileRemainder
	Number    SubtileNumber
}

// Data is the part of a descriptor that is written to the device.
type Data struct {
	WeightsAddr    uint32
	InfeatAddr     uint32
	OutfeatAddr    uint32
	ScaleAddr      uint32
	ScaleShiftAddr uint32
	ScaleBiasAddr  uint32

	InfeatStride  Stride
	OutfeatStride Stride
	WeightsStride Stride

	Subtile Subtile

	Padding            uint32
	WeightOffsetFactor uint32
	FilterMask         uint32
	Conf0              uint32

	// Neureka v2 only
	StreaminAddr uint32
}
