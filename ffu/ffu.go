// Package ffu models each accelerator as a fixed-function unit that takes
// whole convolution workloads, and a registry that picks the cheapest unit
// for a workload.
package ffu

import (
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/LynnColeArt/nnx"
)

// Workload represents a unit of work that can be executed on an FFU
type Workload interface {
	// Type returns the workload type (e.g., "conv3x3", "dwconv3x3_s2")
	Type() string

	// Size returns the bytes moved by the workload
	Size() int64

	// Validate checks if the workload is valid
	Validate() error
}

// Cost represents the estimated cost of executing a workload
type Cost struct {
	// Estimated execution time
	Duration time.Duration

	// Number of hardware jobs the workload is split into
	Jobs int

	// Subtile iterations over all jobs
	Subtiles int64

	// Estimated memory bandwidth usage in bytes per second
	MemoryBandwidth int64

	// Confidence level (0-1) in the estimate
	Confidence float64
}

// Unreachable is the cost reported for a workload a unit cannot run.
var Unreachable = Cost{Duration: time.Hour * 24 * 365}

// FFU represents a Fixed-Function Unit
type FFU interface {
	Name() string
	Type() FFUType

	// CanHandle checks if this FFU can handle the workload
	CanHandle(workload Workload) bool

	// EstimateCost estimates the cost of executing the workload
	EstimateCost(workload Workload) Cost

	// Execute runs the workload and waits for it to finish
	Execute(workload Workload) error

	IsAvailable() bool
	Metrics() Metrics
}

// FFUType represents the type of fixed-function unit
type FFUType int

const (
	FFUTypeUnknown FFUType = iota
	FFUTypeNE16
	FFUTypeNeureka
	FFUTypeNeurekaV2
)

func (t FFUType) String() string {
	switch t {
	case FFUTypeNE16:
		return "NE16"
	case FFUTypeNeureka:
		return "Neureka"
	case FFUTypeNeurekaV2:
		return "NeurekaV2"
	default:
		return "Unknown"
	}
}

// Metrics tracks FFU performance metrics
type Metrics struct {
	// Total number of workloads executed
	WorkloadCount int64

	// Hardware jobs dispatched for those workloads
	JobCount int64

	// Total bytes processed
	BytesProcessed int64

	// Total execution time
	TotalDuration time.Duration

	ErrorCount int64
	LastError  error

	// Timestamp of last use
	LastUsed time.Time
}

// Registry manages available FFUs
type Registry struct {
	mu   sync.RWMutex
	ffus map[string]FFU
}

// NewRegistry creates a new FFU registry
func NewRegistry() *Registry {
	return &Registry{
		ffus: make(map[string]FFU),
	}
}

// Register adds an FFU to the registry
func (r *Registry) Register(ffu FFU) error {
	if ffu == nil {
		return nnx.NewInvalidArgError("Registry.Register", "cannot register nil FFU")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	name := ffu.Name()
	if _, exists := r.ffus[name]; exists {
		return nnx.NewInvalidArgErrorf("Registry.Register", "FFU %s already registered", name)
	}
	r.ffus[name] = ffu
	return nil
}

// Get returns an FFU by name
func (r *Registry) Get(name string) (FFU, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ffu, exists := r.ffus[name]
	return ffu, exists
}

// List returns all registered FFUs ordered by name
func (r *Registry) List() []FFU {
	r.mu.RLock()
	names := lo.Keys(r.ffus)
	r.mu.RUnlock()

	sort.Strings(names)
	return lo.FilterMap(names, func(name string, _ int) (FFU, bool) {
		return r.Get(name)
	})
}

// FindBest returns the available FFU with the shortest estimated duration
// for the workload, or nil when none can handle it.
func (r *Registry) FindBest(workload Workload) (FFU, *Cost) {
	candidates := lo.Filter(r.List(), func(f FFU, _ int) bool {
		return f.IsAvailable() && f.CanHandle(workload)
	})
	if len(candidates) == 0 {
		return nil, nil
	}

	costs := lo.Map(candidates, func(f FFU, _ int) Cost {
		return f.EstimateCost(workload)
	})
	best := 0
	for i, c := range costs {
		if c.Duration < costs[best].Duration {
			best = i
		}
	}
	return candidates[best], &costs[best]
}
