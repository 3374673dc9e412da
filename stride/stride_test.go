package stride

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LynnColeArt/nnx"
	"github.com/LynnColeArt/nnx/bsp"
	"github.com/LynnColeArt/nnx/hwpe"
	"github.com/LynnColeArt/nnx/profile"
	"github.com/LynnColeArt/nnx/queue"
	"github.com/LynnColeArt/nnx/task"
)

// conv9x9 is a 3x3 stride 2 convolution of a padded 9x9x32 input.
func conv9x9() task.Config {
	return task.Config{
		Kernel:           3,
		Stride:           2,
		InputBits:        8,
		OutputBits:       8,
		WeightBits:       8,
		Quant:            &task.Quant{ShiftAmount: 8},
		Norm:             task.Norm{Mode: task.NormMode8Bit},
		WeightOffsetMode: task.WeightOffsetLayerWise,
		WeightOffset:     -128,
		HIn:              9, WIn: 9, KIn: 32,
		HOut: 5, WOut: 5, KOut: 32,
		Padding:     task.Padding{Top: 1, Bottom: 1, Left: 1, Right: 1},
		InputAddr:   0x1000,
		OutputAddr:  0x8000,
		WeightsAddr: 0xa000,
	}
}

func TestGrid(t *testing.T) {
	tests := []struct {
		hOut, wOut int
		nH, nW     int
	}{
		{1, 1, 1, 1},
		{2, 2, 1, 1},
		{4, 5, 2, 3},
		{5, 5, 3, 3},
		{7, 2, 4, 1},
	}
	for _, tt := range tests {
		g := Geometry{HOut: tt.hOut, WOut: tt.wOut, HKer: 3, WKer: 3, Subtile: 3, OutputTile: 2}
		nH, nW := g.Grid()
		assert.Equal(t, tt.nH, nH, "rows for %dx%d", tt.hOut, tt.wOut)
		assert.Equal(t, tt.nW, nW, "columns for %dx%d", tt.hOut, tt.wOut)
	}
}

func TestGeometryFor(t *testing.T) {
	g, err := GeometryFor(profile.NE16, conv9x9())
	require.NoError(t, err)
	assert.Equal(t, Geometry{
		HOut: 5, WOut: 5, HKer: 3, WKer: 3,
		HInStride: 288, WInStride: 32,
		HOutStride: 160, WOutStride: 32,
		Subtile: 3, OutputTile: 2,
	}, g)

	for _, p := range []*profile.Profile{profile.NEUREKA, profile.NEUREKAV2} {
		_, err := GeometryFor(p, conv9x9())
		assert.True(t, nnx.IsUnsupportedError(err), "%s: %v", p, err)
	}

	_, err = GeometryFor(nil, conv9x9())
	assert.Equal(t, nnx.ErrNilProfile, err)
}

func TestPlanOddOutput(t *testing.T) {
	g, err := GeometryFor(profile.NE16, conv9x9())
	require.NoError(t, err)

	const in, out = 3776, 0x8000
	pad := task.PackPadding(1, 1, 1, 1, 0)
	tiles := Plan(g, in, out, pad)
	require.Len(t, tiles, 9)

	// Rows and columns after the first are pulled back by one output and
	// two input elements, so the last tile ends on the last output.
	inOff := []uint32{0, 2, 6}
	outOff := []uint32{0, 1, 3}
	for _, tl := range tiles {
		wantIn := in + inOff[tl.I]*g.HInStride + inOff[tl.J]*g.WInStride
		wantOut := uint32(out) + outOff[tl.I]*g.HOutStride + outOff[tl.J]*g.WOutStride
		assert.Equal(t, wantIn, tl.InputAddr, "input of tile (%d, %d)", tl.I, tl.J)
		assert.Equal(t, wantOut, tl.OutputAddr, "output of tile (%d, %d)", tl.I, tl.J)
	}

	assert.Equal(t, task.PackPadding(1, 0, 1, 0, 0), tiles[0].Padding)
	assert.Equal(t, task.PackPadding(0, 0, 0, 0, 0), tiles[4].Padding)
	assert.Equal(t, task.PackPadding(0, 1, 0, 1, 0), tiles[8].Padding)
	assert.Equal(t, task.PackPadding(1, 0, 0, 1, 0), tiles[2].Padding)
}

func TestPlanEvenOutput(t *testing.T) {
	g := Geometry{
		HOut: 4, WOut: 4, HKer: 3, WKer: 3,
		HInStride: 100, WInStride: 10,
		HOutStride: 40, WOutStride: 10,
		Subtile: 3, OutputTile: 2,
	}
	tiles := Plan(g, 0, 0, 0)
	require.Len(t, tiles, 4)
	last := tiles[3]
	assert.Equal(t, uint32(4*100+4*10), last.InputAddr)
	assert.Equal(t, uint32(2*40+2*10), last.OutputAddr)
}

func TestPlanPointwise(t *testing.T) {
	g := Geometry{
		HOut: 2, WOut: 4, HKer: 1, WKer: 1,
		HInStride: 100, WInStride: 10,
		HOutStride: 40, WOutStride: 10,
		Subtile: 3, OutputTile: 2,
	}
	tiles := Plan(g, 0, 0, 0)
	require.Len(t, tiles, 2)
	assert.Equal(t, uint32(4*10), tiles[1].InputAddr)
}

func TestDispatch(t *testing.T) {
	cfg := conv9x9()
	d, err := task.Build(profile.NE16, cfg)
	require.NoError(t, err)
	g, err := GeometryFor(profile.NE16, cfg)
	require.NoError(t, err)

	sim := hwpe.NewSim(hwpe.WithHistory())
	q := queue.New(hwpe.New(sim), sim)
	require.NoError(t, q.Open(nil, bsp.DefaultConf()))

	parent := d.Data
	n, err := Dispatch(q, d, g)
	require.NoError(t, err)
	assert.Equal(t, 9, n)
	assert.Equal(t, uint8(8), d.JobID())
	assert.Equal(t, parent, d.Data, "parent registers changed")

	q.ResolveWait(d)
	q.Drain()

	jobs := sim.History()
	require.Len(t, jobs, 9)
	tiles := Plan(g, parent.InfeatAddr, parent.OutfeatAddr, parent.Padding)
	for k, j := range jobs {
		assert.Equal(t, uint8(k), j.ID)
		assert.Equal(t, tiles[k].InputAddr, j.Registers[task.RegInfeatAddr], "job %d input", k)
		assert.Equal(t, tiles[k].OutputAddr, j.Registers[task.RegOutfeatAddr], "job %d output", k)
		assert.Equal(t, tiles[k].Padding, j.Registers[task.RegPadding], "job %d padding", k)
		assert.Equal(t, parent.WeightsAddr, j.Registers[task.RegWeightsAddr])
		assert.Equal(t, parent.Conf0, j.Registers[task.RegConf0])
	}
}

func TestDispatchWithoutDims(t *testing.T) {
	sim := hwpe.NewSim()
	q := queue.New(hwpe.New(sim), sim)
	d := task.New(profile.NE16)
	g := Geometry{HOut: 2, WOut: 2, HKer: 3, WKer: 3, Subtile: 3, OutputTile: 2}
	_, err := Dispatch(q, d, g)
	assert.True(t, nnx.IsStateError(err), "got %v", err)
	assert.Equal(t, 0, sim.Queued())
}

// failAfter accepts n jobs, then reports err.
type failAfter struct {
	n   int
	err error
}

func (f *failAfter) DispatchBlocking(t queue.Task) error {
	if f.n == 0 {
		return f.err
	}
	t.Assign(uint8(10 - f.n))
	f.n--
	return nil
}

func TestDispatchStopsOnWaitError(t *testing.T) {
	cfg := conv9x9()
	d, err := task.Build(profile.NE16, cfg)
	require.NoError(t, err)
	g, err := GeometryFor(profile.NE16, cfg)
	require.NoError(t, err)

	dead := nnx.NewDeviceError("WaitAndClear", "uio interrupt wait", nil)
	n, err := Dispatch(&failAfter{n: 3, err: dead}, d, g)
	assert.Equal(t, dead, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, uint8(9), d.JobID())
}

func TestDispatchSerialized(t *testing.T) {
	cfg := conv9x9()
	d, err := task.Build(profile.NE16, cfg)
	require.NoError(t, err)
	g, err := GeometryFor(profile.NE16, cfg)
	require.NoError(t, err)

	sim := hwpe.NewSim()
	s := queue.NewSerialized(queue.New(hwpe.New(sim), sim))
	n, err := Dispatch(s, d, g)
	require.NoError(t, err)
	assert.Equal(t, 9, n)
	require.NoError(t, s.ResolveWait(d))
	assert.Equal(t, 9, sim.Finished())
}
