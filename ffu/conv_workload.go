package ffu

import (
	"fmt"

	"github.com/LynnColeArt/nnx/profile"
	"github.com/LynnColeArt/nnx/task"
	"github.com/LynnColeArt/nnx/weight"
)

// ConvWorkload is one convolution whose tensors already live in
// accelerator-visible memory at the addresses in Config.
type ConvWorkload struct {
	Config task.Config
}

// NewConvWorkload wraps c.
func NewConvWorkload(c task.Config) *ConvWorkload {
	return &ConvWorkload{Config: c}
}

// Type returns the workload type
func (w *ConvWorkload) Type() string {
	name := fmt.Sprintf("conv%dx%d", w.Config.Kernel, w.Config.Kernel)
	if w.Config.Depthwise {
		name = "dw" + name
	}
	if w.Config.Stride == 2 {
		name += "_s2"
	}
	return name
}

// Size returns the input, output and weight bytes of the convolution
func (w *ConvWorkload) Size() int64 {
	c := w.Config
	in := int64(c.HIn*c.WIn*c.KIn) * int64(c.InputBits) / 8
	out := int64(c.HOut*c.WOut*c.KOut) * int64(c.OutputBits) / 8
	return in + out + w.weightBytes()
}

func (w *ConvWorkload) weightBytes() int64 {
	c := w.Config
	cin := c.KIn
	if c.Depthwise {
		cin = 1
	}
	return int64(c.KOut*cin*c.Kernel*c.Kernel) * int64(c.WeightBits) / 8
}

// Validate checks the convolution geometry
func (w *ConvWorkload) Validate() error {
	return w.Config.Validate()
}

// MACs returns the multiply-accumulate count of the convolution
func (w *ConvWorkload) MACs() int64 {
	c := w.Config
	perOutput := int64(c.Kernel * c.Kernel)
	if !c.Depthwise {
		perOutput *= int64(c.KIn)
	}
	return int64(c.HOut*c.WOut*c.KOut) * perOutput
}

// WeightShape returns the (cout, cin, h, w) shape of the weight tensor.
func (w *ConvWorkload) WeightShape() weight.Shape {
	c := w.Config
	cin := c.KIn
	if c.Depthwise {
		cin = 1
	}
	return weight.Shape{Cout: c.KOut, Cin: cin, H: c.Kernel, W: c.Kernel}
}

// EncodeWeights lays out the unsigned weights w for profile p, ready to be
// copied to Config.WeightsAddr.
func (w *ConvWorkload) EncodeWeights(p *profile.Profile, weights []uint8) ([]byte, error) {
	return weight.Encode(p, w.WeightShape(), w.Config.WeightBits, w.Config.Depthwise, weights)
}
