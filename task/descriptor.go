// Package task builds the register image of one accelerator job.
//
// A Descriptor is filled in through a fixed sequence of setters:
//
//	d := task.New(profile.NE16)
//	d.SetOperation(3, false, 1)
//	d.SetBits(8, 8, 8)
//	d.SetNormQuant(quant, norm)
//	d.SetWeightOffset(task.WeightOffsetLayerWise, -128)
//	d.SetDims(dims)
//	d.SetAddrConv(...)
//
// Setters validate all of their arguments before touching the descriptor,
// so a rejected call leaves it unchanged. Strides, counters and addresses
// depend on the kernel shape and bit widths and are refused until
// SetOperation and SetBits have run.
package task

import (
	"github.com/LynnColeArt/nnx"
	"github.com/LynnColeArt/nnx/profile"
)

type stage uint8

const (
	stageOperation stage = 1 << iota
	stageBits
	stageDims
)

// Descriptor is one job for a given accelerator generation.
type Descriptor struct {
	Data Data

	// Job id assigned by the hardware queue at dispatch
	ID uint8

	profile   *profile.Profile
	kernel    int
	depthwise bool
	stride    int

	inputBits  int
	outputBits int
	weightBits int

	// NE16 weight d0 stride unit, picked from the input mode
	weightStrideUnit uint32
	// Output d1/d2 strides are halved for native 2x2 stride
	outputStrideShift uint

	done stage
}

// New returns a zeroed descriptor. p must not be nil.
func New(p *profile.Profile) *Descriptor {
	if p == nil {
		panic(nnx.ErrNilProfile)
	}
	return &Descriptor{profile: p, stride: 1}
}

// Profile returns the accelerator profile the descriptor targets.
func (d *Descriptor) Profile() *profile.Profile { return d.profile }

// JobID returns the id assigned at dispatch.
func (d *Descriptor) JobID() uint8 { return d.ID }

// Assign records the id handed out by the hardware queue.
func (d *Descriptor) Assign(id uint8) { d.ID = id }

// Kernel returns the kernel side set by SetOperation.
func (d *Descriptor) Kernel() int { return d.kernel }

// Depthwise reports whether the job is a depthwise convolution.
func (d *Descriptor) Depthwise() bool { return d.depthwise }

// Stride returns the convolution stride set by SetOperation.
func (d *Descriptor) Stride() int { return d.stride }

// WeightBits returns the weight bit width set by SetBits.
func (d *Descriptor) WeightBits() int { return d.weightBits }

// Clone returns an independent copy sharing the profile.
func (d *Descriptor) Clone() *Descriptor {
	c := *d
	return &c
}

func (d *Descriptor) require(op string, s stage) error {
	if d.done&s == s {
		return nil
	}
	switch {
	case s&stageOperation != 0 && d.done&stageOperation == 0:
		return nnx.NewStateError(op, "SetOperation must be called first")
	default:
		return nnx.NewStateError(op, "SetBits must be called first")
	}
}

func (d *Descriptor) unsupported(op string) error {
	return nnx.NewUnsupportedError(op, d.profile.Name())
}

// setConf0 replaces the bits under mask with value.
func (d *Descriptor) setConf0(mask, value uint32) {
	d.Data.Conf0 = d.Data.Conf0&^mask | value&mask
}

func (d *Descriptor) setFlag(flag uint32, on bool) {
	if on {
		d.setConf0(flag, flag)
	} else {
		d.setConf0(flag, 0)
	}
}

// SetOperation selects the convolution mode. kernel is 1 or 3, depthwise
// requires a 3x3 kernel and stride 2 requires native 2x2 stride support.
func (d *Descriptor) SetOperation(kernel int, depthwise bool, stride int) error {
	const op = "SetOperation"
	p := d.profile
	if kernel != 1 && kernel != p.FilterSize {
		return nnx.NewInvalidArgErrorf(op, "kernel shape %d, want 1 or %d", kernel, p.FilterSize)
	}
	if depthwise && kernel == 1 {
		return nnx.NewInvalidArgError(op, "depthwise requires a 3x3 kernel")
	}
	if stride != 1 && stride != 2 {
		return nnx.NewInvalidArgErrorf(op, "stride %d, want 1 or 2", stride)
	}
	if stride == 2 && !p.Has(profile.CapStride2x2) {
		return d.unsupported(op + " stride 2")
	}

	mode := uint32(profile.Conf0Mode3x3)
	switch {
	case kernel == 1:
		mode = profile.Conf0Mode1x1
	case depthwise:
		mode = profile.Conf0Mode3x3DW
	}
	d.setConf0(profile.Conf0MaskMode, mode)
	d.setFlag(profile.Conf0Stride2x2, stride == 2)

	d.kernel = kernel
	d.depthwise = depthwise
	d.stride = stride
	d.outputStrideShift = 0
	if stride == 2 {
		d.outputStrideShift = 1
	}
	d.done |= stageOperation
	return nil
}

// SetBits sets the input, output and weight bit widths.
func (d *Descriptor) SetBits(inputBits, outputBits, weightBits int) error {
	const op = "SetBits"
	if err := d.require(op, stageOperation); err != nil {
		return err
	}
	p := d.profile

	switch {
	case inputBits == 8:
	case inputBits == 16 && p.Has(profile.CapMode16):
	default:
		return nnx.NewInvalidArgErrorf(op, "input bits %d not supported on %s", inputBits, p)
	}

	var quantMode uint32
	switch {
	case outputBits == 8:
		quantMode = profile.Conf0QuantMode8
	case outputBits == 16 && p.Has(profile.CapQuant16):
		quantMode = profile.Conf0QuantMode16
	case outputBits == 32:
		quantMode = profile.Conf0QuantMode32
	default:
		return nnx.NewInvalidArgErrorf(op, "output bits %d not supported on %s", outputBits, p)
	}

	if weightBits < 2 || weightBits > profile.Conf0WeightBitsMax {
		return nnx.NewInvalidArgErrorf(op, "weight bits %d outside [2, %d]", weightBits, profile.Conf0WeightBitsMax)
	}

	mode16 := inputBits == 16
	d.setConf0(profile.Conf0MaskQuantMode, quantMode)
	d.setFlag(profile.Conf0Mode16, mode16)
	d.setConf0(profile.Conf0MaskWeightBits, uint32(weightBits-1))

	d.inputBits = inputBits
	d.outputBits = outputBits
	d.weightBits = weightBits
	d.weightStrideUnit = uint32(p.WeightStrideUnitMode8)
	if mode16 {
		d.weightStrideUnit = uint32(p.WeightStrideUnitMode16)
	}
	d.done |= stageBits
	return nil
}

// SetNormQuant enables the normalization and quantization stage.
func (d *Descriptor) SetNormQuant(q Quant, n Norm) error {
	const op = "SetNormQuant"
	if q.ShiftAmount > 31 {
		return nnx.NewInvalidArgErrorf(op, "shift amount %d outside [0, 31]", q.ShiftAmount)
	}
	if q.Function != QuantFunctionReLU && q.Function != QuantFunctionIdentity {
		return nnx.NewInvalidArgErrorf(op, "unknown quant function %v", q.Function)
	}
	switch n.Mode {
	case NormMode8Bit, NormMode32Bit:
	case NormMode16Bit:
		if !d.profile.Has(profile.CapQuant16) {
			return d.unsupported(op + " 16-bit norm")
		}
	default:
		return nnx.NewInvalidArgErrorf(op, "unknown norm mode %d", int(n.Mode))
	}

	d.setFlag(profile.Conf0NormQuant, true)
	d.setFlag(profile.Conf0QuantIdentity, q.Function == QuantFunctionIdentity)
	d.setConf0(profile.Conf0MaskShiftAmount, uint32(q.ShiftAmount)<<profile.Conf0ShiftAmountShift)
	d.setFlag(profile.Conf0Rounding, q.Rounding)
	d.setConf0(profile.Conf0MaskNormMode, n.Mode.bits())
	d.setFlag(profile.Conf0NormBias, n.Bias)
	d.setFlag(profile.Conf0NormShift, n.Shift)
	return nil
}

// SetWeightOffset selects the weight offset mode. The factor is stored as
// given.
func (d *Descriptor) SetWeightOffset(mode WeightOffsetMode, factor int32) error {
	const op = "SetWeightOffset"
	switch mode {
	case WeightOffsetLayerWise:
	case WeightOffsetSymmetric:
		if d.profile.Has(profile.CapLayerWiseOffsetOnly) {
			return d.unsupported(op + " symmetric")
		}
	default:
		return nnx.NewInvalidArgErrorf(op, "unknown weight offset mode %v", mode)
	}
	d.setFlag(profile.Conf0WeightOffsetLayerWise, mode == WeightOffsetLayerWise)
	d.Data.WeightOffsetFactor = uint32(factor)
	return nil
}

// SetActivationSigned marks the input activations as signed.
func (d *Descriptor) SetActivationSigned(signed bool) error {
	if !d.profile.Has(profile.CapActivationSigned) {
		return d.unsupported("SetActivationSigned")
	}
	d.setFlag(profile.Conf0ActivationSigned, signed)
	return nil
}

// SetOutputSigned marks the output features as signed.
func (d *Descriptor) SetOutputSigned(signed bool) error {
	if !d.profile.Has(profile.CapOutputSigned) {
		return d.unsupported("SetOutputSigned")
	}
	d.setFlag(profile.Conf0OutfeatSigned, signed)
	return nil
}

// SetStreaminSigned marks the stream-in features as signed.
func (d *Descriptor) SetStreaminSigned(signed bool) error {
	if !d.profile.Has(profile.CapStreaminSigned) {
		return d.unsupported("SetStreaminSigned")
	}
	d.setFlag(profile.Conf0StreaminSigned, signed)
	return nil
}

// SetStreamin enables accumulation onto the features at addr.
func (d *Descriptor) SetStreamin(addr uint32) error {
	if !d.profile.Has(profile.CapStreamin) {
		return d.unsupported("SetStreamin")
	}
	d.setFlag(profile.Conf0Streamin, true)
	d.Data.StreaminAddr = addr
	return nil
}

// SetActivationPrefetch toggles input prefetching.
func (d *Descriptor) SetActivationPrefetch(on bool) error {
	if !d.profile.Has(profile.CapActivPrefetch) {
		return d.unsupported("SetActivationPrefetch")
	}
	d.setFlag(profile.Conf0ActivPrefetch, on)
	return nil
}

// SetWeightSource selects where weights are read from. Call it before
// SetAddrConv, which adjusts the weight address for the source.
func (d *Descriptor) SetWeightSource(src WeightSource) error {
	const op = "SetWeightSource"
	if !d.profile.Has(profile.CapWeightSource) {
		return d.unsupported(op)
	}
	switch src {
	case WeightSourceTCDM:
		d.setConf0(profile.Conf0MaskWeightSource, 0)
	case WeightSourceWmem:
		d.setConf0(profile.Conf0MaskWeightSource, profile.Conf0WeightSourceWmem)
	default:
		return nnx.NewInvalidArgErrorf(op, "unknown weight source %v", src)
	}
	return nil
}

// WeightSource returns the weight source encoded in the control word.
func (d *Descriptor) WeightSource() WeightSource {
	if d.Data.Conf0&profile.Conf0MaskWeightSource != 0 {
		return WeightSourceWmem
	}
	return WeightSourceTCDM
}
