package main

import (
	"github.com/spf13/pflag"

	"github.com/LynnColeArt/nnx"
	"github.com/LynnColeArt/nnx/task"
)

// convFlags binds the flags describing one convolution.
type convFlags struct {
	kernel    int
	stride    int
	depthwise bool

	inBits, outBits, wBits int

	hIn, wIn, kIn int
	kOut          int
	pad           uint8

	shift   uint8
	relu    bool
	noQuant bool

	weightOffset int32

	input, output, weights uint32
	scale, scaleShift      uint32
	bias                   uint32
}

func (c *convFlags) register(fs *pflag.FlagSet) {
	fs.IntVarP(&c.kernel, "kernel", "k", 3, "kernel size (1 or 3)")
	fs.IntVar(&c.stride, "stride", 1, "convolution stride (1 or 2)")
	fs.BoolVar(&c.depthwise, "depthwise", false, "depthwise convolution")
	fs.IntVar(&c.inBits, "in-bits", 8, "input activation bits")
	fs.IntVar(&c.outBits, "out-bits", 8, "output activation bits")
	fs.IntVar(&c.wBits, "w-bits", 8, "weight bits")
	fs.IntVar(&c.hIn, "h-in", 8, "input height")
	fs.IntVar(&c.wIn, "w-in", 8, "input width")
	fs.IntVar(&c.kIn, "k-in", 32, "input channels")
	fs.IntVar(&c.kOut, "k-out", 32, "output channels")
	fs.Uint8Var(&c.pad, "pad", 1, "zero padding on every side")
	fs.Uint8Var(&c.shift, "shift", 0, "requantization right shift")
	fs.BoolVar(&c.relu, "relu", true, "apply ReLU when requantizing")
	fs.BoolVar(&c.noQuant, "no-quant", false, "disable normalization and quantization")
	fs.Int32Var(&c.weightOffset, "weight-offset", -128, "layer-wise weight offset")
	fs.Uint32Var(&c.input, "input", 0x1000, "input tensor address")
	fs.Uint32Var(&c.output, "output", 0x8000, "output tensor address")
	fs.Uint32Var(&c.weights, "weights", 0x10000, "weights address")
	fs.Uint32Var(&c.scale, "scale", 0x18000, "scale address")
	fs.Uint32Var(&c.scaleShift, "scale-shift", 0x18100, "scale shift address")
	fs.Uint32Var(&c.bias, "bias", 0x18200, "bias address")
}

// config derives the output extents and returns the convolution.
func (c *convFlags) config() (task.Config, error) {
	stride := c.stride
	if stride <= 0 {
		return task.Config{}, nnx.NewInvalidArgErrorf("flags", "stride %d", c.stride)
	}
	span := func(in int) int { return (in+2*int(c.pad)-c.kernel)/stride + 1 }
	kOut := c.kOut
	if c.depthwise {
		kOut = c.kIn
	}
	cfg := task.Config{
		Kernel:           c.kernel,
		Depthwise:        c.depthwise,
		Stride:           stride,
		InputBits:        c.inBits,
		OutputBits:       c.outBits,
		WeightBits:       c.wBits,
		WeightOffsetMode: task.WeightOffsetLayerWise,
		WeightOffset:     c.weightOffset,
		HIn:              c.hIn,
		WIn:              c.wIn,
		KIn:              c.kIn,
		HOut:             span(c.hIn),
		WOut:             span(c.wIn),
		KOut:             kOut,
		Padding:          task.Padding{Top: c.pad, Bottom: c.pad, Left: c.pad, Right: c.pad},
		InputAddr:        c.input,
		OutputAddr:       c.output,
		WeightsAddr:      c.weights,
		ScaleAddr:        c.scale,
		ShiftAddr:        c.scaleShift,
		BiasAddr:         c.bias,
	}
	if !c.noQuant {
		fn := task.QuantFunctionIdentity
		if c.relu {
			fn = task.QuantFunctionReLU
		}
		cfg.Quant = &task.Quant{ShiftAmount: c.shift, Function: fn}
		cfg.Norm = task.Norm{Mode: task.NormMode8Bit, Bias: true, Shift: true}
	}
	return cfg, cfg.Validate()
}
