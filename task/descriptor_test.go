package task

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/LynnColeArt/nnx"
	"github.com/LynnColeArt/nnx/profile"
	"github.com/LynnColeArt/nnx/subtile"
)

func newConv(t *testing.T, p *profile.Profile, kernel int, depthwise bool) *Descriptor {
	t.Helper()
	d := New(p)
	if err := d.SetOperation(kernel, depthwise, 1); err != nil {
		t.Fatalf("SetOperation: %v", err)
	}
	if err := d.SetBits(8, 8, 8); err != nil {
		t.Fatalf("SetBits: %v", err)
	}
	return d
}

func TestExactMultipleCounters(t *testing.T) {
	d := newConv(t, profile.NEUREKA, 1, false)
	if err := d.SetWeightOffset(WeightOffsetLayerWise, -128); err != nil {
		t.Fatal(err)
	}
	err := d.SetDims(Dims{
		KIn: 64, HOut: 8, WOut: 8, KOut: 64,
		WInStride: 64, HInStride: 64 * 8,
		WOutStride: 64, HOutStride: 64 * 8,
	})
	if err != nil {
		t.Fatalf("SetDims: %v", err)
	}

	st := d.Data.Subtile
	if want := subtile.Concat(2, 2); st.Number.KoKi != want {
		t.Errorf("Number.KoKi = %#x, want %#x", st.Number.KoKi, want)
	}
	if want := subtile.Concat(32, 32); st.Remainder.KoKi != want {
		t.Errorf("Remainder.KoKi = %#x, want %#x", st.Remainder.KoKi, want)
	}
	if want := subtile.Concat(2, 2); st.Number.HoWo != want {
		t.Errorf("Number.HoWo = %#x, want %#x", st.Number.HoWo, want)
	}
	if want := subtile.Concat(2, 2); st.Remainder.HiWi != want {
		t.Errorf("Remainder.HiWi = %#x, want %#x", st.Remainder.HiWi, want)
	}
}

func TestSetPadding(t *testing.T) {
	d := New(profile.NE16)
	if err := d.SetPadding(3, 1, 0, 2, 0x7f); err != nil {
		t.Fatalf("SetPadding: %v", err)
	}
	if want := uint32(0x3210007f); d.Data.Padding != want {
		t.Errorf("Padding = %#x, want %#x", d.Data.Padding, want)
	}

	tests := []struct {
		name                     string
		top, bottom, left, right uint8
	}{
		{"top", 16, 0, 0, 0},
		{"bottom", 0, 16, 0, 0},
		{"left", 0, 0, 200, 0},
		{"right", 0, 0, 0, 255},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := d.SetPadding(tt.top, tt.bottom, tt.left, tt.right, 0)
			if !nnx.IsInvalidArgError(err) {
				t.Fatalf("SetPadding = %v, want invalid argument", err)
			}
			if want := uint32(0x3210007f); d.Data.Padding != want {
				t.Errorf("rejected call modified padding to %#x", d.Data.Padding)
			}
		})
	}
}

func TestSetFilterMask(t *testing.T) {
	d := New(profile.NEUREKAV2)
	d.SetFilterMask(1, 2, 3, 4)
	// top, right, bottom, left from the most significant byte down
	if want := uint32(0x01040203); d.Data.FilterMask != want {
		t.Errorf("FilterMask = %#x, want %#x", d.Data.FilterMask, want)
	}
}

func TestCallOrder(t *testing.T) {
	d := New(profile.NE16)
	if err := d.SetBits(8, 8, 8); !nnx.IsStateError(err) {
		t.Errorf("SetBits before SetOperation = %v, want state error", err)
	}
	if err := d.SetOperation(3, false, 1); err != nil {
		t.Fatal(err)
	}
	if err := d.SetDims(Dims{KIn: 16, HOut: 3, WOut: 3, KOut: 32}); !nnx.IsStateError(err) {
		t.Errorf("SetDims before SetBits = %v, want state error", err)
	}
	if err := d.SetAddrConv(0x100, 3, 16, 0, 0, 0x200, 0x300); !nnx.IsStateError(err) {
		t.Errorf("SetAddrConv before SetBits = %v, want state error", err)
	}
	if d.HasDims() {
		t.Error("HasDims() = true before SetDims")
	}
}

func TestSetBits(t *testing.T) {
	tests := []struct {
		name          string
		p             *profile.Profile
		in, out, w    int
		wantErr       bool
		wantQuantMode uint32
		wantMode16    bool
	}{
		{"ne16 8/8/8", profile.NE16, 8, 8, 8, false, profile.Conf0QuantMode8, false},
		{"ne16 16/16/4", profile.NE16, 16, 16, 4, false, profile.Conf0QuantMode16, true},
		{"ne16 8/32/2", profile.NE16, 8, 32, 2, false, profile.Conf0QuantMode32, false},
		{"neureka 16 in", profile.NEUREKA, 16, 8, 8, true, 0, false},
		{"neureka 16 out", profile.NEUREKA, 8, 16, 8, true, 0, false},
		{"neureka v2 8/32/8", profile.NEUREKAV2, 8, 32, 8, false, profile.Conf0QuantMode32, false},
		{"weight bits 1", profile.NE16, 8, 8, 1, true, 0, false},
		{"weight bits 9", profile.NE16, 8, 8, 9, true, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(tt.p)
			if err := d.SetOperation(1, false, 1); err != nil {
				t.Fatal(err)
			}
			before := d.Data.Conf0
			err := d.SetBits(tt.in, tt.out, tt.w)
			if tt.wantErr {
				if !nnx.IsInvalidArgError(err) {
					t.Fatalf("SetBits = %v, want invalid argument", err)
				}
				if d.Data.Conf0 != before {
					t.Errorf("rejected SetBits changed conf0 %#x -> %#x", before, d.Data.Conf0)
				}
				return
			}
			if err != nil {
				t.Fatalf("SetBits: %v", err)
			}
			c := d.Data.Conf0
			if got := c & profile.Conf0MaskQuantMode; got != tt.wantQuantMode {
				t.Errorf("quant mode = %#x, want %#x", got, tt.wantQuantMode)
			}
			if got := c&profile.Conf0Mode16 != 0; got != tt.wantMode16 {
				t.Errorf("mode16 = %v, want %v", got, tt.wantMode16)
			}
			if got := int(c&profile.Conf0MaskWeightBits) + 1; got != tt.w {
				t.Errorf("weight bits = %d, want %d", got, tt.w)
			}
			if got := c & profile.Conf0MaskMode; got != profile.Conf0Mode1x1 {
				t.Errorf("mode = %#x, want 1x1", got)
			}
		})
	}
}

func TestSetNormQuant(t *testing.T) {
	d := newConv(t, profile.NE16, 3, false)
	q := Quant{ShiftAmount: 31, Function: QuantFunctionIdentity, Rounding: true}
	n := Norm{Mode: NormMode32Bit, Bias: true}
	if err := d.SetNormQuant(q, n); err != nil {
		t.Fatalf("SetNormQuant: %v", err)
	}
	want := uint32(profile.Conf0NormQuant | profile.Conf0QuantIdentity | 31<<profile.Conf0ShiftAmountShift |
		profile.Conf0Rounding | profile.Conf0NormMode32 | profile.Conf0NormBias | 7)
	if d.Data.Conf0 != want {
		t.Errorf("Conf0 = %#x, want %#x", d.Data.Conf0, want)
	}

	// reapplying replaces the fields instead of OR-ing into them
	if err := d.SetNormQuant(Quant{ShiftAmount: 4}, Norm{Mode: NormMode8Bit, Shift: true}); err != nil {
		t.Fatal(err)
	}
	want = uint32(profile.Conf0NormQuant | 4<<profile.Conf0ShiftAmountShift | profile.Conf0NormShift | 7)
	if d.Data.Conf0 != want {
		t.Errorf("Conf0 = %#x, want %#x", d.Data.Conf0, want)
	}

	before := d.Data.Conf0
	if err := d.SetNormQuant(Quant{ShiftAmount: 32}, Norm{}); !nnx.IsInvalidArgError(err) {
		t.Errorf("shift 32: err = %v, want invalid argument", err)
	}
	if d.Data.Conf0 != before {
		t.Errorf("rejected SetNormQuant changed conf0")
	}

	v1 := newConv(t, profile.NEUREKA, 3, false)
	if err := v1.SetNormQuant(Quant{}, Norm{Mode: NormMode16Bit}); !nnx.IsUnsupportedError(err) {
		t.Errorf("neureka 16-bit norm: err = %v, want unsupported", err)
	}
}

func TestWeightOffset(t *testing.T) {
	d := newConv(t, profile.NE16, 3, false)
	if err := d.SetWeightOffset(WeightOffsetLayerWise, -128); err != nil {
		t.Fatal(err)
	}
	if d.Data.WeightOffsetFactor != 0xffffff80 {
		t.Errorf("WeightOffsetFactor = %#x", d.Data.WeightOffsetFactor)
	}
	if d.Data.Conf0&profile.Conf0MaskWeightOffset == 0 {
		t.Error("layer-wise flag not set")
	}
	if err := d.SetWeightOffset(WeightOffsetSymmetric, 0); err != nil {
		t.Fatal(err)
	}
	if d.Data.Conf0&profile.Conf0MaskWeightOffset != 0 {
		t.Error("layer-wise flag still set after symmetric")
	}

	v2 := newConv(t, profile.NEUREKAV2, 3, false)
	if err := v2.SetWeightOffset(WeightOffsetSymmetric, 0); !nnx.IsUnsupportedError(err) {
		t.Errorf("neureka v2 symmetric: err = %v, want unsupported", err)
	}
	if err := v2.SetWeightOffset(WeightOffsetMode(5), 0); !nnx.IsInvalidArgError(err) {
		t.Errorf("unknown mode: err = %v, want invalid argument", err)
	}
}

func TestExtrasReadModifyWrite(t *testing.T) {
	d := newConv(t, profile.NEUREKAV2, 3, false)
	if err := d.SetActivationSigned(true); err != nil {
		t.Fatal(err)
	}
	if err := d.SetOutputSigned(true); err != nil {
		t.Fatal(err)
	}
	if err := d.SetStreaminSigned(true); err != nil {
		t.Fatal(err)
	}
	if err := d.SetWeightSource(WeightSourceWmem); err != nil {
		t.Fatal(err)
	}
	// changing the bit widths afterwards keeps the flags
	if err := d.SetBits(8, 32, 4); err != nil {
		t.Fatal(err)
	}
	c := d.Data.Conf0
	for _, f := range []uint32{profile.Conf0ActivationSigned, profile.Conf0OutfeatSigned,
		profile.Conf0StreaminSigned, profile.Conf0WeightSourceWmem} {
		if c&f == 0 {
			t.Errorf("flag %#x lost, conf0 = %#x", f, c)
		}
	}
	if err := d.SetOutputSigned(false); err != nil {
		t.Fatal(err)
	}
	if d.Data.Conf0 != c&^profile.Conf0OutfeatSigned {
		t.Errorf("clearing out-feature sign touched other fields: %#x", d.Data.Conf0)
	}
	if d.WeightSource() != WeightSourceWmem {
		t.Errorf("WeightSource() = %v", d.WeightSource())
	}
}

func TestExtrasUnsupported(t *testing.T) {
	ne16 := newConv(t, profile.NE16, 3, false)
	before := ne16.Data.Conf0
	checks := []struct {
		name string
		fn   func() error
	}{
		{"SetActivationSigned", func() error { return ne16.SetActivationSigned(true) }},
		{"SetOutputSigned", func() error { return ne16.SetOutputSigned(true) }},
		{"SetStreaminSigned", func() error { return ne16.SetStreaminSigned(true) }},
		{"SetStreamin", func() error { return ne16.SetStreamin(0x100) }},
		{"SetWeightSource", func() error { return ne16.SetWeightSource(WeightSourceWmem) }},
		{"SetActivationPrefetch", func() error { return ne16.SetActivationPrefetch(true) }},
	}
	for _, c := range checks {
		if err := c.fn(); !nnx.IsUnsupportedError(err) {
			t.Errorf("%s on ne16 = %v, want unsupported", c.name, err)
		}
	}
	if ne16.Data.Conf0 != before {
		t.Errorf("unsupported extras changed conf0 %#x -> %#x", before, ne16.Data.Conf0)
	}

	v1 := newConv(t, profile.NEUREKA, 3, false)
	if err := v1.SetStreamin(0x100); !nnx.IsUnsupportedError(err) {
		t.Errorf("neureka stream-in = %v, want unsupported", err)
	}
	if err := v1.SetActivationSigned(true); err != nil {
		t.Errorf("neureka activation sign: %v", err)
	}
}

func TestSetOperation(t *testing.T) {
	tests := []struct {
		name      string
		p         *profile.Profile
		kernel    int
		depthwise bool
		stride    int
		wantMode  uint32
		check     func(error) bool
	}{
		{"1x1", profile.NE16, 1, false, 1, profile.Conf0Mode1x1, nil},
		{"3x3", profile.NEUREKA, 3, false, 1, profile.Conf0Mode3x3, nil},
		{"3x3 dw", profile.NEUREKAV2, 3, true, 1, profile.Conf0Mode3x3DW, nil},
		{"kernel 5", profile.NE16, 5, false, 1, 0, nnx.IsInvalidArgError},
		{"1x1 dw", profile.NE16, 1, true, 1, 0, nnx.IsInvalidArgError},
		{"stride 3", profile.NE16, 3, false, 3, 0, nnx.IsInvalidArgError},
		{"neureka stride 2", profile.NEUREKA, 3, false, 2, 0, nnx.IsUnsupportedError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(tt.p)
			err := d.SetOperation(tt.kernel, tt.depthwise, tt.stride)
			if tt.check != nil {
				if !tt.check(err) {
					t.Fatalf("SetOperation = %v", err)
				}
				if d.Data.Conf0 != 0 {
					t.Errorf("rejected call wrote conf0 %#x", d.Data.Conf0)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got := d.Data.Conf0 & profile.Conf0MaskMode; got != tt.wantMode {
				t.Errorf("mode = %#x, want %#x", got, tt.wantMode)
			}
		})
	}

	d := New(profile.NE16)
	if err := d.SetOperation(3, false, 2); err != nil {
		t.Fatal(err)
	}
	if d.Data.Conf0&profile.Conf0Stride2x2 == 0 {
		t.Error("stride 2x2 flag not set")
	}
	if err := d.SetOperation(3, false, 1); err != nil {
		t.Fatal(err)
	}
	if d.Data.Conf0&profile.Conf0Stride2x2 != 0 {
		t.Error("stride 2x2 flag kept after switching to stride 1")
	}
}

func TestWeightStrides(t *testing.T) {
	tests := []struct {
		name      string
		p         *profile.Profile
		kernel    int
		depthwise bool
		inBits    int
		wBits     int
		kIn       int
		want      Stride
	}{
		{"ne16 1x1", profile.NE16, 1, false, 8, 8, 32, Stride{D0: 16, D1: 32}},
		{"ne16 1x1 mode16", profile.NE16, 1, false, 16, 4, 48, Stride{D0: 4, D1: 12}},
		{"ne16 3x3", profile.NE16, 3, false, 8, 8, 32, Stride{D0: 18, D1: 288}},
		{"ne16 3x3 dw", profile.NE16, 3, true, 8, 8, 32, Stride{D0: 18}},
		{"neureka 1x1", profile.NEUREKA, 1, false, 8, 8, 64, Stride{D0: 32, D1: 64}},
		{"neureka 3x3", profile.NEUREKA, 3, false, 8, 8, 56, Stride{D0: 32, D1: 512}},
		{"neureka 3x3 dw", profile.NEUREKA, 3, true, 8, 8, 56, Stride{D0: 32}},
		{"neureka v2 1x1", profile.NEUREKAV2, 1, false, 8, 4, 64, Stride{D0: 36, D1: 32}},
		{"neureka v2 3x3", profile.NEUREKAV2, 3, false, 8, 2, 96, Stride{D0: 36, D1: 216}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(tt.p)
			if err := d.SetOperation(tt.kernel, tt.depthwise, 1); err != nil {
				t.Fatal(err)
			}
			if err := d.SetBits(tt.inBits, 8, tt.wBits); err != nil {
				t.Fatal(err)
			}
			if err := d.SetStrides(tt.kIn, 0, 0, 0, 0); err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, d.Data.WeightsStride); diff != "" {
				t.Errorf("weights stride mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSetDimsStride2x2(t *testing.T) {
	d := New(profile.NE16)
	if err := d.SetOperation(3, false, 2); err != nil {
		t.Fatal(err)
	}
	if err := d.SetBits(8, 8, 8); err != nil {
		t.Fatal(err)
	}
	dm := Dims{
		KIn: 32, HOut: 5, WOut: 5, KOut: 32,
		WInStride: 32, HInStride: 32 * 9,
		WOutStride: 32, HOutStride: 32 * 5,
		PaddingTop: 1, PaddingBottom: 1, PaddingLeft: 1, PaddingRight: 1,
	}
	if err := d.SetDimsStride2x2(dm, 9, 9, 3, 3); err != nil {
		t.Fatalf("SetDimsStride2x2: %v", err)
	}

	st := d.Data.Subtile
	if want := subtile.Concat(1, 1); st.Number.HoWo != want {
		t.Errorf("Number.HoWo = %#x, want %#x", st.Number.HoWo, want)
	}
	if want := subtile.Concat(3, 3); st.Remainder.HoWo != want {
		t.Errorf("Remainder.HoWo = %#x, want %#x", st.Remainder.HoWo, want)
	}
	if want := subtile.Concat(5, 5); st.Remainder.HiWi != want {
		t.Errorf("Remainder.HiWi = %#x, want %#x", st.Remainder.HiWi, want)
	}
	if want := (Stride{D0: 32, D1: 16, D2: 80}); d.Data.OutfeatStride != want {
		t.Errorf("OutfeatStride = %+v, want %+v", d.Data.OutfeatStride, want)
	}
	// (9 + 1 - 3) is odd, so the bottom and right padding survive
	if want := PackPadding(1, 1, 1, 1, 0); d.Data.Padding != want {
		t.Errorf("Padding = %#x, want %#x", d.Data.Padding, want)
	}

	if err := d.SetDimsStride2x2(dm, 8, 8, 3, 3); err != nil {
		t.Fatal(err)
	}
	if want := PackPadding(1, 0, 1, 0, 0); d.Data.Padding != want {
		t.Errorf("even span Padding = %#x, want %#x", d.Data.Padding, want)
	}

	s1 := newConv(t, profile.NE16, 3, false)
	if err := s1.SetDimsStride2x2(dm, 9, 9, 3, 3); !nnx.IsStateError(err) {
		t.Errorf("stride 1 descriptor: err = %v, want state error", err)
	}
	v2 := newConv(t, profile.NEUREKAV2, 3, false)
	if err := v2.SetDimsStride2x2(dm, 9, 9, 3, 3); !nnx.IsUnsupportedError(err) {
		t.Errorf("neureka v2: err = %v, want unsupported", err)
	}
}

func TestSetAddrConv(t *testing.T) {
	d := newConv(t, profile.NE16, 3, false)
	if err := d.SetAddrConv(0x1000, 8, 32, 1, 1, 0x2000, 0x3000); err != nil {
		t.Fatal(err)
	}
	if want := uint32(0x1000 - 9*32); d.Data.InfeatAddr != want {
		t.Errorf("InfeatAddr = %#x, want %#x", d.Data.InfeatAddr, want)
	}
	if d.Data.WeightsAddr != 0x3000 || d.Data.OutfeatAddr != 0x2000 {
		t.Errorf("addresses = %#x/%#x", d.Data.WeightsAddr, d.Data.OutfeatAddr)
	}

	v2 := newConv(t, profile.NEUREKAV2, 3, false)
	if err := v2.SetAddrConv(0x1000, 8, 32, 0, 0, 0x2000, 0x10003000); err != nil {
		t.Fatal(err)
	}
	if v2.Data.WeightsAddr != 0x3000 {
		t.Errorf("tcdm weights = %#x, want 0x3000", v2.Data.WeightsAddr)
	}
	if err := v2.SetWeightSource(WeightSourceWmem); err != nil {
		t.Fatal(err)
	}
	if err := v2.SetAddrConv(0x1000, 8, 32, 0, 0, 0x2000, 0x10400000); err != nil {
		t.Fatal(err)
	}
	if v2.Data.WeightsAddr != 0x10400000 {
		t.Errorf("wmem weights = %#x, want 0x10400000", v2.Data.WeightsAddr)
	}
}

func TestTilePadding(t *testing.T) {
	full := PackPadding(1, 1, 1, 1, 0x5a)
	tests := []struct {
		i, j int
		want uint32
	}{
		{0, 0, PackPadding(1, 0, 1, 0, 0x5a)},
		{0, 2, PackPadding(1, 0, 0, 1, 0x5a)},
		{1, 1, PackPadding(0, 0, 0, 0, 0x5a)},
		{2, 0, PackPadding(0, 1, 1, 0, 0x5a)},
		{2, 2, PackPadding(0, 1, 0, 1, 0x5a)},
	}
	for _, tt := range tests {
		if got := TilePadding(full, tt.i, tt.j, 3, 3); got != tt.want {
			t.Errorf("TilePadding(%d, %d) = %#x, want %#x", tt.i, tt.j, got, tt.want)
		}
	}
	if got := TilePadding(full, 0, 0, 1, 1); got != full {
		t.Errorf("single tile keeps all padding, got %#x", got)
	}
}
