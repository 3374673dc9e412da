// Package weight converts convolution weights between the (cout, cin, h, w)
// tensor order and the bit-plane layouts streamed by each accelerator.
//
// Every layout splits the input channels into subtiles of the profile's
// input channel throughput, zero padding the last one, and stores each
// weight bit as a separate plane, least significant plane first. Bits are
// packed into bytes little-endian.
package weight

import (
	"github.com/LynnColeArt/nnx"
	"github.com/LynnColeArt/nnx/profile"
	"github.com/LynnColeArt/nnx/subtile"
)

// Shape is the logical weight tensor shape in (cout, cin, h, w) order.
// Depthwise weights have Cin 1.
type Shape struct {
	Cout, Cin, H, W int
}

// Len returns the number of weights.
func (s Shape) Len() int { return s.Cout * s.Cin * s.H * s.W }

type kind int

const (
	// (cout, cinMajor, bits, h*w, cinMinor)
	kindPlanar kind = iota
	// 3x3: (cout, cinMajor, bits, h*w*cinMinor) rows padded to the weight
	// bandwidth. 1x1: (cout, cinMajor, cinMinor/4, 8 bits, 4) rows.
	kindBandwidth
)

type layout struct {
	kind      kind
	cout, cin int
	hw        int
	sub       int
	cinMajor  int
	bits      int
	rowBits   int
	pointwise bool
	depthwise bool
}

func newLayout(p *profile.Profile, s Shape, bits int, depthwise bool) (layout, error) {
	const op = "weight.Layout"
	if err := p.Validate(); err != nil {
		return layout{}, err
	}
	if s.Cout <= 0 || s.Cin <= 0 {
		return layout{}, nnx.NewInvalidArgErrorf(op, "channels %dx%d must be positive", s.Cout, s.Cin)
	}
	if s.H != s.W || (s.H != 1 && s.H != 3) {
		return layout{}, nnx.NewInvalidArgErrorf(op, "kernel %dx%d, want 1x1 or 3x3", s.H, s.W)
	}
	if bits < 2 || bits > 8 {
		return layout{}, nnx.NewInvalidArgErrorf(op, "weight bits %d outside [2, 8]", bits)
	}
	if depthwise && s.Cin != 1 {
		return layout{}, nnx.NewInvalidArgErrorf(op, "depthwise weights need cin 1, got %d", s.Cin)
	}

	cout, cin := s.Cout, s.Cin
	if depthwise {
		cout, cin = cin, cout
	}
	l := layout{
		cout:      cout,
		cin:       cin,
		hw:        s.H * s.W,
		sub:       p.InputChannelThroughput(s.H),
		bits:      bits,
		pointwise: s.H == 1,
		depthwise: depthwise,
	}
	l.cinMajor = subtile.Count(cin, l.sub)
	if p.Generation == profile.Neureka {
		l.kind = kindBandwidth
		l.rowBits = p.WeightBandwidthBits
		if l.pointwise && l.sub*8 != l.rowBits {
			return layout{}, nnx.NewInvalidArgErrorf(op, "1x1 subtile %d does not fill %d bit rows", l.sub, l.rowBits)
		}
		if !l.pointwise && l.hw*l.sub > l.rowBits {
			return layout{}, nnx.NewInvalidArgErrorf(op, "3x3 subtile %d overflows %d bit rows", l.sub, l.rowBits)
		}
	}
	return l, nil
}

// visit is called once per stored bit with its stream position. ok is
// false for padding bits.
type visit func(pos, co, ci, s, b int, ok bool)

// walk enumerates the stored bits in stream order and returns the stream
// length in bits.
func (l layout) walk(fn visit) int {
	pos := 0
	switch {
	case l.kind == kindPlanar:
		for co := 0; co < l.cout; co++ {
			for cm := 0; cm < l.cinMajor; cm++ {
				for b := 0; b < l.bits; b++ {
					for s := 0; s < l.hw; s++ {
						for k := 0; k < l.sub; k++ {
							ci := cm*l.sub + k
							fn(pos, co, ci, s, b, ci < l.cin)
							pos++
						}
					}
				}
			}
		}
	case l.pointwise:
		for co := 0; co < l.cout; co++ {
			for cm := 0; cm < l.cinMajor; cm++ {
				for g := 0; g < l.sub/4; g++ {
					for b := 0; b < 8; b++ {
						for t := 0; t < 4; t++ {
							ci := cm*l.sub + g*4 + t
							fn(pos, co, ci, 0, b, ci < l.cin && b < l.bits)
							pos++
						}
					}
				}
			}
		}
	default:
		for co := 0; co < l.cout; co++ {
			for cm := 0; cm < l.cinMajor; cm++ {
				for b := 0; b < l.bits; b++ {
					row := pos
					for s := 0; s < l.hw; s++ {
						for k := 0; k < l.sub; k++ {
							ci := cm*l.sub + k
							fn(pos, co, ci, s, b, ci < l.cin)
							pos++
						}
					}
					pos = row + l.rowBits
				}
			}
		}
	}
	return pos
}

// index returns the offset of (co, ci, s) in the logical tensor.
func (l layout) index(co, ci, s int) int {
	if l.depthwise {
		return (ci*l.cout+co)*l.hw + s
	}
	return (co*l.cin+ci)*l.hw + s
}

func (l layout) sizeBits() int {
	perOut := l.cinMajor
	switch {
	case l.kind == kindPlanar:
		perOut *= l.bits * l.hw * l.sub
	case l.pointwise:
		perOut *= l.rowBits
	default:
		perOut *= l.bits * l.rowBits
	}
	return l.cout * perOut
}

// Size returns the encoded size in bytes.
func Size(p *profile.Profile, s Shape, bits int, depthwise bool) (int, error) {
	l, err := newLayout(p, s, bits, depthwise)
	if err != nil {
		return 0, err
	}
	return (l.sizeBits() + 7) / 8, nil
}

// Encode lays out w, a (cout, cin, h, w) tensor of unsigned weights of the
// given bit width, for profile p. Bits above the width are ignored.
func Encode(p *profile.Profile, s Shape, bits int, depthwise bool, w []uint8) ([]byte, error) {
	l, err := newLayout(p, s, bits, depthwise)
	if err != nil {
		return nil, err
	}
	if len(w) != s.Len() {
		return nil, nnx.NewInvalidArgErrorf("weight.Encode", "got %d weights, shape %v holds %d", len(w), s, s.Len())
	}
	out := make([]byte, (l.sizeBits()+7)/8)
	l.walk(func(pos, co, ci, sp, b int, ok bool) {
		if ok && w[l.index(co, ci, sp)]>>uint(b)&1 != 0 {
			out[pos/8] |= 1 << uint(pos%8)
		}
	})
	return out, nil
}

// Decode is the inverse of Encode.
func Decode(p *profile.Profile, s Shape, bits int, depthwise bool, data []byte) ([]uint8, error) {
	l, err := newLayout(p, s, bits, depthwise)
	if err != nil {
		return nil, err
	}
	if want := (l.sizeBits() + 7) / 8; len(data) != want {
		return nil, nnx.NewInvalidArgErrorf("weight.Decode", "got %d bytes, want %d", len(data), want)
	}
	w := make([]uint8, s.Len())
	l.walk(func(pos, co, ci, sp, b int, ok bool) {
		if ok && data[pos/8]>>uint(pos%8)&1 != 0 {
			w[l.index(co, ci, sp)] |= 1 << uint(b)
		}
	})
	return w, nil
}
