// Package profile describes the register geometry and numeric constants of
// each accelerator generation.
//
// A Profile is immutable. The three generations are exposed as package
// level values and shared by every descriptor built for them.
package profile

import (
	"fmt"
	"strings"

	"github.com/LynnColeArt/nnx"
)

// Generation identifies an accelerator hardware generation.
type Generation int

const (
	Ne16 Generation = iota
	Neureka
	NeurekaV2
)

func (g Generation) String() string {
	switch g {
	case Ne16:
		return "ne16"
	case Neureka:
		return "neureka"
	case NeurekaV2:
		return "neureka_v2"
	default:
		return "unknown"
	}
}

// Capability is a bit set of generation-specific features.
type Capability uint32

const (
	// 16-bit input activations (mode16)
	CapMode16 Capability = 1 << iota
	// Native 2x2 strided mode bit
	CapStride2x2
	// 16-bit quantization and normalization modes
	CapQuant16
	// Signed input activations
	CapActivationSigned
	// Signed output features
	CapOutputSigned
	// Signed stream-in features
	CapStreaminSigned
	// Stream-in accumulation
	CapStreamin
	// Weight source selector (weight memory vs shared L1)
	CapWeightSource
	// Activation prefetch
	CapActivPrefetch
	// Only layer-wise weight offset is accepted
	CapLayerWiseOffsetOnly
)

// Profile holds the constants of one accelerator generation.
type Profile struct {
	Generation Generation

	// Input channels consumed per subtile for 1x1 and 3x3 kernels
	InputChannelThroughput1x1 int
	InputChannelThroughput3x3 int

	// Output channels produced per subtile, dense and depthwise
	OutputChannelThroughput    int
	DepthwiseChannelThroughput int

	// Native output subtile in spatial elements
	SubtileHeight int
	SubtileWidth  int

	// Native square filter size
	FilterSize int

	// Side of the input staging buffer for a 3x3 receptive field.
	// Zero when the input d2 stride is unused.
	FilterBufferSize int

	// Output stream bandwidth in bytes
	OutputBandwidthBytes int

	// Weight stream bandwidth in bits. Zero when weight strides are
	// expressed in stride units instead.
	WeightBandwidthBits int

	// Weight d0 stride units for 8-bit and 16-bit input modes
	WeightStrideUnitMode8  int
	WeightStrideUnitMode16 int

	QueueDepth int

	// Input address is moved back to the virtual padded origin
	PadInputAddress bool

	// Subtracted from the weight address when weights stream from shared L1
	TCDMWeightOffset uint32

	// Number of 32-bit words in the register image
	RegisterWords int

	// Number of simulator trace words following the register image
	TraceWords int

	// The input remainder accounts for bottom/right padding
	RemainderSubtractsPadding bool

	// The simulation model's running job register cannot be trusted
	SimJobIDUnreliable bool

	// Strided decomposition geometry: output elements per tile and the
	// native subtile that computes them. Zero when unsupported.
	StridedOutputTile int
	StridedSubtile    int

	Capabilities Capability
}

// Name returns the generation name.
func (p *Profile) Name() string {
	return p.Generation.String()
}

func (p *Profile) String() string {
	return p.Name()
}

// Has reports whether the profile supports all capabilities in c.
func (p *Profile) Has(c Capability) bool {
	return p.Capabilities&c == c
}

// InputChannelThroughput returns the Ki subtile for the kernel shape.
func (p *Profile) InputChannelThroughput(kernel int) int {
	if kernel == 1 {
		return p.InputChannelThroughput1x1
	}
	return p.InputChannelThroughput3x3
}

// OutputChannelThroughputFor returns the Ko subtile, which shrinks to the
// input subtile for depthwise kernels.
func (p *Profile) OutputChannelThroughputFor(depthwise bool) int {
	if depthwise {
		return p.DepthwiseChannelThroughput
	}
	return p.OutputChannelThroughput
}

// SupportsStride2x2 reports whether jobs can be decomposed for 2x2 stride.
func (p *Profile) SupportsStride2x2() bool {
	return p.StridedOutputTile > 0 && p.StridedSubtile > 0
}

// Validate checks the profile for values no driver path can work with.
func (p *Profile) Validate() error {
	if p == nil {
		return nnx.ErrNilProfile
	}
	positive := []struct {
		name string
		v    int
	}{
		{"InputChannelThroughput1x1", p.InputChannelThroughput1x1},
		{"InputChannelThroughput3x3", p.InputChannelThroughput3x3},
		{"OutputChannelThroughput", p.OutputChannelThroughput},
		{"DepthwiseChannelThroughput", p.DepthwiseChannelThroughput},
		{"SubtileHeight", p.SubtileHeight},
		{"SubtileWidth", p.SubtileWidth},
		{"FilterSize", p.FilterSize},
		{"OutputBandwidthBytes", p.OutputBandwidthBytes},
	}
	for _, f := range positive {
		if f.v <= 0 {
			return nnx.NewInvalidArgErrorf("Profile", "%s: %s must be positive, got %d", p.Name(), f.name, f.v)
		}
	}
	if p.QueueDepth != 1 && p.QueueDepth != 2 {
		return nnx.NewInvalidArgErrorf("Profile", "%s: queue depth must be 1 or 2, got %d", p.Name(), p.QueueDepth)
	}
	if p.RegisterWords < RegisterWordsBase {
		return nnx.NewInvalidArgErrorf("Profile", "%s: register image needs at least %d words, got %d",
			p.Name(), RegisterWordsBase, p.RegisterWords)
	}
	if p.WeightBandwidthBits == 0 && (p.WeightStrideUnitMode8 <= 0 || p.WeightStrideUnitMode16 <= 0) {
		return nnx.NewInvalidArgErrorf("Profile", "%s: needs a weight bandwidth or weight stride units", p.Name())
	}
	return nil
}

// RegisterWordsBase is the register image length shared by all generations.
const RegisterWordsBase = 24

var (
	// NE16 is the first generation with a 3x3 output subtile and 16 input
	// channels per subtile.
	NE16 = &Profile{
		Generation:                 Ne16,
		InputChannelThroughput1x1:  16,
		InputChannelThroughput3x3:  16,
		OutputChannelThroughput:    32,
		DepthwiseChannelThroughput: 16,
		SubtileHeight:              3,
		SubtileWidth:               3,
		FilterSize:                 3,
		FilterBufferSize:           5,
		OutputBandwidthBytes:       32,
		WeightStrideUnitMode8:      2,
		WeightStrideUnitMode16:     1,
		QueueDepth:                 2,
		PadInputAddress:            true,
		RegisterWords:              24,
		TraceWords:                 2,
		RemainderSubtractsPadding:  true,
		StridedOutputTile:          2,
		StridedSubtile:             3,
		Capabilities:               CapMode16 | CapStride2x2 | CapQuant16,
	}

	// NEUREKA has a 6x6 output subtile and a dedicated weight memory.
	NEUREKA = &Profile{
		Generation:                 Neureka,
		InputChannelThroughput1x1:  32,
		InputChannelThroughput3x3:  28,
		OutputChannelThroughput:    32,
		DepthwiseChannelThroughput: 28,
		SubtileHeight:              6,
		SubtileWidth:               6,
		FilterSize:                 3,
		OutputBandwidthBytes:       32,
		WeightBandwidthBits:        256,
		QueueDepth:                 2,
		PadInputAddress:            true,
		RegisterWords:              24,
		TraceWords:                 1,
		RemainderSubtractsPadding:  true,
		SimJobIDUnreliable:         true,
		Capabilities:               CapActivationSigned | CapWeightSource | CapActivPrefetch,
	}

	// NEUREKAV2 widens the 3x3 input subtile to 32 channels and adds
	// stream-in accumulation.
	NEUREKAV2 = &Profile{
		Generation:                 NeurekaV2,
		InputChannelThroughput1x1:  32,
		InputChannelThroughput3x3:  32,
		OutputChannelThroughput:    32,
		DepthwiseChannelThroughput: 32,
		SubtileHeight:              6,
		SubtileWidth:               6,
		FilterSize:                 3,
		OutputBandwidthBytes:       32,
		WeightBandwidthBits:        288,
		QueueDepth:                 2,
		PadInputAddress:            true,
		TCDMWeightOffset:           0x10000000,
		RegisterWords:              25,
		TraceWords:                 2,
		SimJobIDUnreliable:         true,
		Capabilities: CapActivationSigned | CapOutputSigned | CapStreaminSigned |
			CapStreamin | CapWeightSource | CapActivPrefetch | CapLayerWiseOffsetOnly,
	}
)

// All returns every known profile in generation order.
func All() []*Profile {
	return []*Profile{NE16, NEUREKA, NEUREKAV2}
}

// Get returns the profile of a generation.
func Get(g Generation) (*Profile, error) {
	for _, p := range All() {
		if p.Generation == g {
			return p, nil
		}
	}
	return nil, nnx.NewInvalidArgErrorf("profile.Get", "unknown generation %d", int(g))
}

// Lookup returns the profile with the given name. Matching ignores case and
// accepts "-" in place of "_".
func Lookup(name string) (*Profile, error) {
	n := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	for _, p := range All() {
		if p.Name() == n {
			return p, nil
		}
	}
	return nil, nnx.NewInvalidArgError("profile.Lookup", fmt.Sprintf("unknown accelerator %q", name))
}
