package task

import "github.com/LynnColeArt/nnx/profile"

// strategy holds the per-generation rules that cannot be expressed as plain
// profile constants.
type strategy struct {
	weightStride func(d *Descriptor, numKi uint32) Stride
}

var strategies = map[profile.Generation]strategy{
	profile.Ne16:      {weightStride: ne16WeightStride},
	profile.Neureka:   {weightStride: neurekaWeightStride},
	profile.NeurekaV2: {weightStride: neurekaV2WeightStride},
}

func strategyFor(p *profile.Profile) strategy {
	if s, ok := strategies[p.Generation]; ok {
		return s
	}
	return strategy{weightStride: neurekaWeightStride}
}

// NE16 weight strides are counted in weight d0 stride units.
func ne16WeightStride(d *Descriptor, numKi uint32) Stride {
	unit := d.weightStrideUnit
	qw := uint32(d.weightBits)
	fs := uint32(d.profile.FilterSize * d.profile.FilterSize)
	switch {
	case d.kernel == 1:
		return Stride{D0: unit * qw, D1: unit * qw * numKi}
	case !d.depthwise:
		return Stride{D0: fs * unit, D1: fs * unit * qw * numKi}
	default:
		return Stride{D0: fs * unit}
	}
}

// Neureka streams one weight bandwidth word per bit plane of a 3x3 subtile;
// 1x1 weights pack all bit planes into a single word.
func neurekaWeightStride(d *Descriptor, numKi uint32) Stride {
	bw := uint32(d.profile.WeightBandwidthBits / 8)
	qw := uint32(d.weightBits)
	switch {
	case d.kernel == 1:
		return Stride{D0: bw, D1: bw * numKi}
	case !d.depthwise:
		return Stride{D0: bw, D1: bw * qw * numKi}
	default:
		return Stride{D0: bw}
	}
}

// Neureka v2 1x1 weights occupy qw bytes per 8 input channels.
func neurekaV2WeightStride(d *Descriptor, numKi uint32) Stride {
	bw := uint32(d.profile.WeightBandwidthBits / 8)
	qw := uint32(d.weightBits)
	switch {
	case d.kernel == 1:
		ki := uint32(d.profile.InputChannelThroughput1x1)
		return Stride{D0: bw, D1: numKi * qw * ki / 8}
	case !d.depthwise:
		return Stride{D0: bw, D1: bw * qw * numKi}
	default:
		return Stride{D0: bw}
	}
}
