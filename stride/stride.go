// Package stride runs 2x2 strided convolutions as a raster of native jobs.
//
// In strided mode the accelerator subsamples the output of one native
// subtile but does not advance its input pointer by the stride, so each
// job may only cover one OutputTile x OutputTile block of the logical
// output. Every tile gets its own input and output address and keeps
// padding only on the outer border of the tensor.
//
// Tiles are only correct for an even number of output channels; callers
// must guarantee it.
package stride

import (
	"github.com/LynnColeArt/nnx"
	"github.com/LynnColeArt/nnx/profile"
	"github.com/LynnColeArt/nnx/queue"
	"github.com/LynnColeArt/nnx/subtile"
	"github.com/LynnColeArt/nnx/task"
)

// Stride is the only supported convolution stride.
const Stride = 2

// Geometry describes the logical strided job. Strides are in bytes.
type Geometry struct {
	HOut, WOut int
	HKer, WKer int

	HInStride, WInStride   uint32
	HOutStride, WOutStride uint32

	// Native output subtile computed per job
	Subtile int
	// Output elements per job along each axis
	OutputTile int
}

// Tile is one native job of a strided plan.
type Tile struct {
	I, J       int
	InputAddr  uint32
	OutputAddr uint32
	Padding    uint32
}

// GeometryFor derives the geometry of a task.Config for profile p.
func GeometryFor(p *profile.Profile, c task.Config) (Geometry, error) {
	if err := p.Validate(); err != nil {
		return Geometry{}, err
	}
	if !p.SupportsStride2x2() {
		return Geometry{}, nnx.NewUnsupportedError("stride.GeometryFor", p.Name())
	}
	dm := c.Dims()
	g := Geometry{
		HOut:       c.HOut,
		WOut:       c.WOut,
		HKer:       c.Kernel,
		WKer:       c.Kernel,
		HInStride:  dm.HInStride,
		WInStride:  dm.WInStride,
		HOutStride: dm.HOutStride,
		WOutStride: dm.WOutStride,
		Subtile:    p.StridedSubtile,
		OutputTile: p.StridedOutputTile,
	}
	return g, g.Validate()
}

// Validate checks that the geometry describes a non-empty grid.
func (g Geometry) Validate() error {
	const op = "stride.Geometry"
	if g.HOut <= 0 || g.WOut <= 0 {
		return nnx.NewInvalidArgErrorf(op, "output %dx%d must be positive", g.HOut, g.WOut)
	}
	if g.HKer <= 0 || g.WKer <= 0 {
		return nnx.NewInvalidArgErrorf(op, "kernel %dx%d must be positive", g.HKer, g.WKer)
	}
	if g.Subtile <= 0 || g.OutputTile <= 0 {
		return nnx.NewInvalidArgErrorf(op, "subtile %d and output tile %d must be positive", g.Subtile, g.OutputTile)
	}
	return nil
}

// Grid returns the number of tile rows and columns.
func (g Geometry) Grid() (nH, nW int) {
	return subtile.Count(g.HOut, g.OutputTile), subtile.Count(g.WOut, g.OutputTile)
}

// tileOffset is the element offset of tile index idx along one axis.
// Consecutive tiles are size-overlap apart; every tile but the first is
// pulled back by edge when the logical output is odd along the axis.
func tileOffset(idx, size, overlap, edge int) int {
	if idx == 0 {
		return 0
	}
	return idx*(size-overlap) - edge
}

// Plan lays out the tiles of g in row-major order. inputBase is the padded
// input origin, as stored by task.Descriptor.SetAddrConv.
func Plan(g Geometry, inputBase, outputBase, padding uint32) []Tile {
	nH, nW := g.Grid()

	inH := g.Subtile + g.HKer - 1
	inW := g.Subtile + g.WKer - 1
	overlapH := g.HKer - Stride
	overlapW := g.WKer - Stride

	var inEdgeH, inEdgeW, outEdgeH, outEdgeW int
	if g.HOut%Stride == 1 {
		inEdgeH, outEdgeH = Stride, 1
	}
	if g.WOut%Stride == 1 {
		inEdgeW, outEdgeW = Stride, 1
	}

	tiles := make([]Tile, 0, nH*nW)
	for i := 0; i < nH; i++ {
		for j := 0; j < nW; j++ {
			inRow := tileOffset(i, inH, overlapH, inEdgeH)
			inCol := tileOffset(j, inW, overlapW, inEdgeW)
			outRow := tileOffset(i, g.OutputTile, 0, outEdgeH)
			outCol := tileOffset(j, g.OutputTile, 0, outEdgeW)
			tiles = append(tiles, Tile{
				I:          i,
				J:          j,
				InputAddr:  inputBase + uint32(inRow)*g.HInStride + uint32(inCol)*g.WInStride,
				OutputAddr: outputBase + uint32(outRow)*g.HOutStride + uint32(outCol)*g.WOutStride,
				Padding:    task.TilePadding(padding, i, j, nH, nW),
			})
		}
	}
	return tiles
}

// Dispatcher issues one job, waiting for a free slot. queue.Queue and
// queue.Serialized implement it.
type Dispatcher interface {
	DispatchBlocking(t queue.Task) error
}

// Dispatch issues one job per tile of g, derived from d. It waits for a
// free slot before each tile but never for a tile to finish; the caller
// drains the queue afterwards. d itself is left untouched except for its
// job id, which becomes the id of the last tile. On a failed wait it
// returns the number of tiles already issued with the error.
func Dispatch(q Dispatcher, d *task.Descriptor, g Geometry) (int, error) {
	if err := g.Validate(); err != nil {
		return 0, err
	}
	if !d.HasDims() {
		return 0, nnx.NewStateError("stride.Dispatch", "descriptor has no dimensions")
	}
	tiles := Plan(g, d.Data.InfeatAddr, d.Data.OutfeatAddr, d.Data.Padding)
	for k, tl := range tiles {
		t := d.Clone()
		t.Data.InfeatAddr = tl.InputAddr
		t.Data.OutfeatAddr = tl.OutputAddr
		t.Data.Padding = tl.Padding
		if err := q.DispatchBlocking(t); err != nil {
			return k, err
		}
		d.Assign(t.JobID())
	}
	return len(tiles), nil
}
