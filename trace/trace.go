// Package trace switches the job tracing of the accelerator simulation
// models. The trace controls live in the job window directly after the
// register image and are ignored by silicon.
package trace

import (
	"fmt"

	"github.com/LynnColeArt/nnx"
	"github.com/LynnColeArt/nnx/hwpe"
	"github.com/LynnColeArt/nnx/profile"
)

// Level selects how much of each job is traced.
type Level int

const (
	LevelJobStartEnd Level = iota
	LevelConfig
	LevelActivInOut
	LevelDebug
	LevelAll
)

func (l Level) String() string {
	switch l {
	case LevelJobStartEnd:
		return "job-start-end"
	case LevelConfig:
		return "config"
	case LevelActivInOut:
		return "activ-inout"
	case LevelDebug:
		return "debug"
	case LevelAll:
		return "all"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// ParseLevel is the inverse of Level.String.
func ParseLevel(s string) (Level, error) {
	for l := LevelJobStartEnd; l <= LevelAll; l++ {
		if l.String() == s {
			return l, nil
		}
	}
	return 0, nnx.NewInvalidArgErrorf("trace.ParseLevel", "unknown level %q", s)
}

// Format is the number format of traced values.
type Format uint32

const (
	FormatDecimal     Format = 0
	FormatHexadecimal Format = 3
)

func (f Format) String() string {
	switch f {
	case FormatDecimal:
		return "dec"
	case FormatHexadecimal:
		return "hex"
	default:
		return fmt.Sprintf("Format(%d)", uint32(f))
	}
}

// Register encodings of each level per generation.
var levels = map[profile.Generation]map[Level]uint32{
	profile.Ne16: {
		LevelConfig:     0,
		LevelActivInOut: 1,
		LevelDebug:      2,
		LevelAll:        3,
	},
	profile.Neureka: {
		LevelJobStartEnd: 0,
		LevelConfig:      1,
		LevelActivInOut:  2,
		LevelAll:         3,
	},
	profile.NeurekaV2: {
		LevelJobStartEnd: 0,
		LevelConfig:      1,
		LevelActivInOut:  2,
		LevelAll:         3,
	},
}

// Encode returns the level register value of l on p.
func Encode(p *profile.Profile, l Level) (uint32, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	v, ok := levels[p.Generation][l]
	if !ok {
		return 0, nnx.NewUnsupportedError("trace level "+l.String(), p.Name())
	}
	return v, nil
}

// Activate enables tracing at level l in format f. Generations with a
// single trace word accept only FormatDecimal.
func Activate(dev *hwpe.Dev, p *profile.Profile, l Level, f Format) error {
	const op = "trace.Activate"
	if dev == nil {
		return nnx.ErrNilDevice
	}
	v, err := Encode(p, l)
	if err != nil {
		return err
	}
	if f != FormatDecimal && f != FormatHexadecimal {
		return nnx.NewInvalidArgErrorf(op, "unknown format %d", uint32(f))
	}
	if p.TraceWords < 2 && f != FormatDecimal {
		return nnx.NewUnsupportedError("trace format "+f.String(), p.Name())
	}
	dev.TaskRegWrite(p.RegisterWords, v)
	if p.TraceWords >= 2 {
		dev.TaskRegWrite(p.RegisterWords+1, uint32(f))
	}
	return nil
}

// Deactivate resets the level register. On the neureka family this keeps
// the job start and end records.
func Deactivate(dev *hwpe.Dev, p *profile.Profile) error {
	if dev == nil {
		return nnx.ErrNilDevice
	}
	if err := p.Validate(); err != nil {
		return err
	}
	dev.TaskRegWrite(p.RegisterWords, 0)
	return nil
}
