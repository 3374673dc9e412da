package task

import (
	"github.com/LynnColeArt/nnx"
	"github.com/LynnColeArt/nnx/subtile"
)

// Padding amounts are 4-bit fields in the padding register.
const MaxPadding = 15

// Padding word nibble positions
const (
	paddingTopShift    = 28
	paddingRightShift  = 24
	paddingBottomShift = 20
	paddingLeftShift   = 16
)

// Dims describes the tensor geometry of a job. Strides are in bytes:
// W strides separate neighbouring pixels, H strides neighbouring rows.
type Dims struct {
	KIn  int
	HOut int
	WOut int
	KOut int

	HInStride  uint32
	WInStride  uint32
	HOutStride uint32
	WOutStride uint32

	PaddingTop    uint8
	PaddingBottom uint8
	PaddingLeft   uint8
	PaddingRight  uint8
}

func (dm Dims) validate(op string, depthwise bool) error {
	if dm.KIn <= 0 || dm.KOut <= 0 || dm.HOut <= 0 || dm.WOut <= 0 {
		return nnx.NewInvalidArgErrorf(op, "dimensions must be positive (k_in=%d, h_out=%d, w_out=%d, k_out=%d)",
			dm.KIn, dm.HOut, dm.WOut, dm.KOut)
	}
	if depthwise && dm.KIn != dm.KOut {
		return nnx.NewInvalidArgErrorf(op, "depthwise needs k_in == k_out, got %d and %d", dm.KIn, dm.KOut)
	}
	return validatePadding(op, dm.PaddingTop, dm.PaddingBottom, dm.PaddingLeft, dm.PaddingRight)
}

func validatePadding(op string, top, bottom, left, right uint8) error {
	for _, f := range []struct {
		name string
		v    uint8
	}{{"top", top}, {"bottom", bottom}, {"left", left}, {"right", right}} {
		if f.v > MaxPadding {
			return nnx.NewInvalidArgErrorf(op, "padding %s %d exceeds %d", f.name, f.v, MaxPadding)
		}
	}
	return nil
}

// SetStrides computes the input, output and weight stride triples.
func (d *Descriptor) SetStrides(kIn int, hInStride, wInStride, hOutStride, wOutStride uint32) error {
	const op = "SetStrides"
	if err := d.require(op, stageOperation|stageBits); err != nil {
		return err
	}
	if kIn <= 0 {
		return nnx.NewInvalidArgErrorf(op, "k_in must be positive, got %d", kIn)
	}
	d.setStrides(kIn, hInStride, wInStride, hOutStride, wOutStride)
	return nil
}

func (d *Descriptor) setStrides(kIn int, hInStride, wInStride, hOutStride, wOutStride uint32) {
	p := d.profile
	numKi := uint32(subtile.Count(kIn, p.InputChannelThroughput(d.kernel)))

	in := Stride{D0: wInStride, D1: hInStride}
	if p.FilterBufferSize > 0 && !d.depthwise {
		in.D2 = wInStride * uint32(p.FilterBufferSize*p.FilterBufferSize)
	}
	d.Data.InfeatStride = in

	// Output strides are halved in native 2x2 mode, which only works for
	// an even number of output channels.
	d.Data.OutfeatStride = Stride{
		D0: uint32(p.OutputBandwidthBytes),
		D1: wOutStride >> d.outputStrideShift,
		D2: hOutStride >> d.outputStrideShift,
	}

	d.Data.WeightsStride = strategyFor(p).weightStride(d, numKi)
}

// SetCounters computes subtile counts and remainders. The input remainder
// grows by 2 for 3x3 kernels and, on generations that account for it,
// shrinks by the bottom/right padding of the edge subtile.
//
// TODO: confirm the padding term of the input remainder on silicon.
func (d *Descriptor) SetCounters(kIn, hOut, wOut, kOut int, paddingBottom, paddingRight uint8) error {
	const op = "SetCounters"
	if err := d.require(op, stageOperation|stageBits); err != nil {
		return err
	}
	dm := Dims{KIn: kIn, HOut: hOut, WOut: wOut, KOut: kOut, PaddingBottom: paddingBottom, PaddingRight: paddingRight}
	if err := dm.validate(op, false); err != nil {
		return err
	}
	d.setCounters(kIn, hOut, wOut, kOut, paddingBottom, paddingRight)
	return nil
}

func (d *Descriptor) setCounters(kIn, hOut, wOut, kOut int, paddingBottom, paddingRight uint8) {
	p := d.profile
	ki := p.InputChannelThroughput(d.kernel)
	ko := p.OutputChannelThroughputFor(d.depthwise)

	numKo, remKo := subtile.Split(kOut, ko)
	numKi, remKi := subtile.Split(kIn, ki)
	numHo, remHo := subtile.Split(hOut, p.SubtileHeight)
	numWo, remWo := subtile.Split(wOut, p.SubtileWidth)

	remHi, remWi := remHo, remWo
	if d.kernel != 1 {
		remHi += d.kernel - 1
		remWi += d.kernel - 1
	}
	if p.RemainderSubtractsPadding {
		remHi -= int(paddingBottom)
		remWi -= int(paddingRight)
	}

	d.Data.Subtile = Subtile{
		Number: SubtileNumber{
			KoKi: subtile.ConcatInt(numKo, numKi),
			HoWo: subtile.ConcatInt(numHo, numWo),
		},
		Remainder: SubtileRemainder{
			KoKi: subtile.ConcatInt(remKo, remKi),
			HoWo: subtile.ConcatInt(remHo, remWo),
			HiWi: subtile.ConcatInt(remHi, remWi),
		},
	}
}

// PackPadding packs the padding amounts and fill value into the padding
// register layout.
func PackPadding(top, bottom, left, right, value uint8) uint32 {
	return uint32(top&0xf)<<paddingTopShift |
		uint32(right&0xf)<<paddingRightShift |
		uint32(bottom&0xf)<<paddingBottomShift |
		uint32(left&0xf)<<paddingLeftShift |
		uint32(value)
}

// SetPadding sets the padding amounts, each at most 15, and the fill value.
func (d *Descriptor) SetPadding(top, bottom, left, right, value uint8) error {
	if err := validatePadding("SetPadding", top, bottom, left, right); err != nil {
		return err
	}
	d.Data.Padding = PackPadding(top, bottom, left, right, value)
	return nil
}

// SetFilterMask sets the per-edge filter masks.
func (d *Descriptor) SetFilterMask(top, bottom, left, right uint8) {
	d.Data.FilterMask = uint32(top)<<24 | uint32(right)<<16 | uint32(bottom)<<8 | uint32(left)
}

// SetDims sets strides, counters and padding for a stride 1 job.
func (d *Descriptor) SetDims(dm Dims) error {
	const op = "SetDims"
	if err := d.require(op, stageOperation|stageBits); err != nil {
		return err
	}
	if err := dm.validate(op, d.depthwise); err != nil {
		return err
	}
	d.setStrides(dm.KIn, dm.HInStride, dm.WInStride, dm.HOutStride, dm.WOutStride)
	d.setCounters(dm.KIn, dm.HOut, dm.WOut, dm.KOut, dm.PaddingBottom, dm.PaddingRight)
	d.Data.Padding = PackPadding(dm.PaddingTop, dm.PaddingBottom, dm.PaddingLeft, dm.PaddingRight, 0)
	d.done |= stageDims
	return nil
}

// SetDimsStride2x2 configures a descriptor whose jobs each compute one
// output tile of a 2x2 strided convolution; see package stride. hIn and
// wIn are the unpadded input extents, hKer and wKer the kernel extents.
func (d *Descriptor) SetDimsStride2x2(dm Dims, hIn, wIn, hKer, wKer int) error {
	const op = "SetDimsStride2x2"
	if err := d.require(op, stageOperation|stageBits); err != nil {
		return err
	}
	p := d.profile
	if !p.SupportsStride2x2() {
		return d.unsupported(op)
	}
	if d.stride != 2 {
		return nnx.NewStateError(op, "SetOperation must select stride 2")
	}
	if err := dm.validate(op, d.depthwise); err != nil {
		return err
	}
	if hIn <= 0 || wIn <= 0 || hKer <= 0 || wKer <= 0 {
		return nnx.NewInvalidArgErrorf(op, "input %dx%d and kernel %dx%d must be positive", hIn, wIn, hKer, wKer)
	}

	const stride = 2
	sub := p.StridedSubtile
	hTile, wTile := 1, 1
	if dm.HOut > 1 {
		hTile = sub
	}
	if dm.WOut > 1 {
		wTile = sub
	}
	counterBottom := dm.PaddingBottom
	if hIn+int(dm.PaddingTop) >= p.FilterBufferSize {
		counterBottom = 0
	}

	d.setStrides(dm.KIn, dm.HInStride, dm.WInStride, dm.HOutStride, dm.WOutStride)
	d.setCounters(dm.KIn, hTile, wTile, dm.KOut, counterBottom, 0)

	bottom, right := dm.PaddingBottom, dm.PaddingRight
	if (hIn+int(dm.PaddingTop)-hKer)%stride == 0 {
		bottom = 0
	}
	if (wIn+int(dm.PaddingLeft)-wKer)%stride == 0 {
		right = 0
	}
	d.Data.Padding = PackPadding(dm.PaddingTop, bottom, dm.PaddingLeft, right, 0)
	d.done |= stageDims
	return nil
}

// TilePadding keeps only the padding that lies on the outer border of an
// nH x nW tile grid for tile (i, j).
func TilePadding(padding uint32, i, j, nH, nW int) uint32 {
	p := padding
	if i > 0 {
		p &^= 0xf << paddingTopShift
	}
	if j < nW-1 {
		p &^= 0xf << paddingRightShift
	}
	if i < nH-1 {
		p &^= 0xf << paddingBottomShift
	}
	if j > 0 {
		p &^= 0xf << paddingLeftShift
	}
	return p
}

// PadAddress moves addr back to the origin of the virtually padded input.
func PadAddress(addr, wIn, wInStride uint32, paddingTop, paddingLeft uint8) uint32 {
	return addr - (uint32(paddingTop)*wIn+uint32(paddingLeft))*wInStride
}

// SetAddrConv sets the feature and weight addresses. input is the address
// of the first real input pixel.
func (d *Descriptor) SetAddrConv(input, wIn, wInStride uint32, paddingTop, paddingLeft uint8, output, weights uint32) error {
	const op = "SetAddrConv"
	if err := d.require(op, stageOperation|stageBits); err != nil {
		return err
	}
	if err := validatePadding(op, paddingTop, 0, paddingLeft, 0); err != nil {
		return err
	}
	p := d.profile
	if p.PadInputAddress {
		input = PadAddress(input, wIn, wInStride, paddingTop, paddingLeft)
	}
	if p.TCDMWeightOffset != 0 && d.WeightSource() == WeightSourceTCDM {
		weights -= p.TCDMWeightOffset
	}
	d.Data.InfeatAddr = input
	d.Data.OutfeatAddr = output
	d.Data.WeightsAddr = weights
	return nil
}

// SetAddrNormQuant sets the scale, shift and bias addresses.
func (d *Descriptor) SetAddrNormQuant(scale, shift, bias uint32) {
	d.Data.ScaleAddr = scale
	d.Data.ScaleShiftAddr = shift
	d.Data.ScaleBiasAddr = bias
}

// HasDims reports whether strides and counters have been set.
func (d *Descriptor) HasDims() bool {
	return d.done&stageDims != 0
}
