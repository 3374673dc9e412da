package task

import (
	"github.com/LynnColeArt/nnx"
	"github.com/LynnColeArt/nnx/profile"
)

// Padding is the zero padding around the input and the fill value.
type Padding struct {
	Top, Bottom, Left, Right uint8
	Value                    uint8
}

// FilterMask suppresses kernel rows and columns at each edge.
type FilterMask struct {
	Top, Bottom, Left, Right uint8
}

// Config is a flat description of one convolution, consumed by Build.
//
// Zero strides are derived from a dense HWC layout. Quant nil leaves the
// normalization and quantization stage disabled.
type Config struct {
	Kernel    int
	Depthwise bool
	Stride    int

	InputBits  int
	OutputBits int
	WeightBits int

	Quant *Quant
	Norm  Norm

	WeightOffsetMode WeightOffsetMode
	WeightOffset     int32

	ActivationSigned bool
	OutputSigned     bool
	StreaminSigned   bool
	Streamin         bool
	ActivPrefetch    bool
	WeightSource     WeightSource

	HIn, WIn, KIn    int
	HOut, WOut, KOut int

	HInStride  uint32
	WInStride  uint32
	HOutStride uint32
	WOutStride uint32

	Padding    Padding
	FilterMask FilterMask

	InputAddr    uint32
	OutputAddr   uint32
	WeightsAddr  uint32
	ScaleAddr    uint32
	ShiftAddr    uint32
	BiasAddr     uint32
	StreaminAddr uint32
}

// withDefaults fills in derived strides.
func (c Config) withDefaults() Config {
	if c.Stride == 0 {
		c.Stride = 1
	}
	if c.WInStride == 0 {
		c.WInStride = uint32(c.KIn * c.InputBits / 8)
	}
	if c.HInStride == 0 {
		c.HInStride = c.WInStride * uint32(c.WIn)
	}
	if c.WOutStride == 0 {
		c.WOutStride = uint32(c.KOut * c.OutputBits / 8)
	}
	if c.HOutStride == 0 {
		c.HOutStride = c.WOutStride * uint32(c.WOut)
	}
	return c
}

// Validate checks the shape relations the builder setters cannot see on
// their own.
func (c Config) Validate() error {
	const op = "Config"
	if c.HIn <= 0 || c.WIn <= 0 || c.KIn <= 0 || c.HOut <= 0 || c.WOut <= 0 || c.KOut <= 0 {
		return nnx.NewInvalidArgErrorf(op, "dimensions must be positive (in %dx%dx%d, out %dx%dx%d)",
			c.HIn, c.WIn, c.KIn, c.HOut, c.WOut, c.KOut)
	}
	stride := c.Stride
	if stride == 0 {
		stride = 1
	}
	if stride != 1 && stride != 2 {
		return nnx.NewInvalidArgErrorf(op, "stride %d, want 1 or 2", c.Stride)
	}
	if c.Kernel != 1 && c.Kernel != 3 {
		return nnx.NewInvalidArgErrorf(op, "kernel shape %d, want 1 or 3", c.Kernel)
	}
	pad := c.Padding
	if err := validatePadding(op, pad.Top, pad.Bottom, pad.Left, pad.Right); err != nil {
		return err
	}
	hSpan := c.HIn + int(pad.Top) + int(pad.Bottom) - c.Kernel
	wSpan := c.WIn + int(pad.Left) + int(pad.Right) - c.Kernel
	if hSpan < 0 || wSpan < 0 {
		return nnx.NewInvalidArgErrorf(op, "padded input %dx%d smaller than kernel %d",
			c.HIn+int(pad.Top)+int(pad.Bottom), c.WIn+int(pad.Left)+int(pad.Right), c.Kernel)
	}
	if want := hSpan/stride + 1; c.HOut != want {
		return nnx.NewInvalidArgErrorf(op, "h_out %d does not match input geometry, want %d", c.HOut, want)
	}
	if want := wSpan/stride + 1; c.WOut != want {
		return nnx.NewInvalidArgErrorf(op, "w_out %d does not match input geometry, want %d", c.WOut, want)
	}
	if c.Depthwise && c.KIn != c.KOut {
		return nnx.NewInvalidArgErrorf(op, "depthwise needs k_in == k_out, got %d and %d", c.KIn, c.KOut)
	}
	if c.Quant != nil && c.Quant.ShiftAmount > 31 {
		return nnx.NewInvalidArgErrorf(op, "shift amount %d outside [0, 31]", c.Quant.ShiftAmount)
	}
	return nil
}

// Dims returns the stride 1 geometry of c.
func (c Config) Dims() Dims {
	c = c.withDefaults()
	return Dims{
		KIn:           c.KIn,
		HOut:          c.HOut,
		WOut:          c.WOut,
		KOut:          c.KOut,
		HInStride:     c.HInStride,
		WInStride:     c.WInStride,
		HOutStride:    c.HOutStride,
		WOutStride:    c.WOutStride,
		PaddingTop:    c.Padding.Top,
		PaddingBottom: c.Padding.Bottom,
		PaddingLeft:   c.Padding.Left,
		PaddingRight:  c.Padding.Right,
	}
}

// Build runs the complete setter sequence for c. Nothing is built when c
// fails validation.
func Build(p *profile.Profile, c Config) (*Descriptor, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	c = c.withDefaults()

	d := New(p)
	if err := d.SetOperation(c.Kernel, c.Depthwise, c.Stride); err != nil {
		return nil, err
	}
	if err := d.SetBits(c.InputBits, c.OutputBits, c.WeightBits); err != nil {
		return nil, err
	}
	if c.Quant != nil {
		if err := d.SetNormQuant(*c.Quant, c.Norm); err != nil {
			return nil, err
		}
	}
	if err := d.SetWeightOffset(c.WeightOffsetMode, c.WeightOffset); err != nil {
		return nil, err
	}
	if err := c.applyExtras(d); err != nil {
		return nil, err
	}

	dims := c.Dims()
	if c.Stride == 2 {
		if err := d.SetDimsStride2x2(dims, c.HIn, c.WIn, c.Kernel, c.Kernel); err != nil {
			return nil, err
		}
	} else if err := d.SetDims(dims); err != nil {
		return nil, err
	}
	if c.Padding.Value != 0 {
		d.Data.Padding = d.Data.Padding&^0xff | uint32(c.Padding.Value)
	}

	m := c.FilterMask
	d.SetFilterMask(m.Top, m.Bottom, m.Left, m.Right)
	if err := d.SetAddrConv(c.InputAddr, uint32(c.WIn), c.WInStride, c.Padding.Top, c.Padding.Left,
		c.OutputAddr, c.WeightsAddr); err != nil {
		return nil, err
	}
	d.SetAddrNormQuant(c.ScaleAddr, c.ShiftAddr, c.BiasAddr)
	return d, nil
}

// applyExtras sets the generation specific flags. A flag left at its zero
// value is skipped so that configs stay portable across generations.
func (c Config) applyExtras(d *Descriptor) error {
	p := d.Profile()
	if c.ActivationSigned {
		if err := d.SetActivationSigned(true); err != nil {
			return err
		}
	}
	if c.OutputSigned {
		if err := d.SetOutputSigned(true); err != nil {
			return err
		}
	}
	if c.StreaminSigned {
		if err := d.SetStreaminSigned(true); err != nil {
			return err
		}
	}
	if c.Streamin {
		if err := d.SetStreamin(c.StreaminAddr); err != nil {
			return err
		}
	}
	if c.ActivPrefetch {
		if err := d.SetActivationPrefetch(true); err != nil {
			return err
		}
	}
	if c.WeightSource != WeightSourceTCDM || p.Has(profile.CapWeightSource) {
		if err := d.SetWeightSource(c.WeightSource); err != nil {
			return err
		}
	}
	return nil
}
