// Package accel implements the FFU interface for the NE16 and neureka
// accelerators on top of the task, queue and stride packages.
package accel

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LynnColeArt/nnx"
	"github.com/LynnColeArt/nnx/bsp"
	"github.com/LynnColeArt/nnx/ffu"
	"github.com/LynnColeArt/nnx/hwpe"
	"github.com/LynnColeArt/nnx/profile"
	"github.com/LynnColeArt/nnx/queue"
	"github.com/LynnColeArt/nnx/stride"
	"github.com/LynnColeArt/nnx/subtile"
	"github.com/LynnColeArt/nnx/task"
	"github.com/LynnColeArt/nnx/trace"
)

// Unit is one accelerator instance. Execute calls are serialized; each
// one opens the platform, runs the workload to completion and closes it.
type Unit struct {
	mu       sync.Mutex
	profile  *profile.Profile
	dev      *hwpe.Dev
	queue    *queue.Queue
	platform bsp.Platform
	conf     bsp.Conf
	clockHz  float64
	logger   *log.Logger

	tracing     bool
	traceLevel  trace.Level
	traceFormat trace.Format

	metrics atomic.Value // *ffu.Metrics
}

type settings struct {
	platform     bsp.Platform
	conf         bsp.Conf
	clockHz      float64
	logger       *log.Logger
	conservative bool
	simModel     bool

	tracing     bool
	traceLevel  trace.Level
	traceFormat trace.Format
}

// Option configures a Unit.
type Option func(*settings)

// WithPlatform sets the platform opened around every workload.
func WithPlatform(p bsp.Platform, conf bsp.Conf) Option {
	return func(s *settings) {
		s.platform = p
		s.conf = conf
	}
}

// WithClock sets the accelerator clock used by EstimateCost.
func WithClock(hz float64) Option {
	return func(s *settings) { s.clockHz = hz }
}

// WithLogger logs workloads and queue activity.
func WithLogger(l *log.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithConservativeResolve only trusts an empty queue as completion. Needed
// on simulation models with a broken running job register.
func WithConservativeResolve(on bool) Option {
	return func(s *settings) { s.conservative = on }
}

// WithSimulationModel marks the device as the simulation model of the
// accelerator. Resolution falls back to the queue empty test on
// generations whose model does not maintain the running job register.
func WithSimulationModel() Option {
	return func(s *settings) { s.simModel = true }
}

// WithTrace enables simulation tracing for every workload.
func WithTrace(l trace.Level, f trace.Format) Option {
	return func(s *settings) {
		s.tracing = true
		s.traceLevel = l
		s.traceFormat = f
	}
}

// NewUnit returns a unit for profile p driving dev, waiting for
// completion events on w.
func NewUnit(p *profile.Profile, dev *hwpe.Dev, w bsp.Waiter, opts ...Option) (*Unit, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if dev == nil {
		return nil, nnx.ErrNilDevice
	}
	if w == nil {
		return nil, nnx.NewInvalidArgError("accel.NewUnit", "nil waiter")
	}
	s := settings{
		platform: bsp.Nop{},
		conf:     bsp.DefaultConf(),
		clockHz:  nnx.DefaultClockHz,
	}
	for _, o := range opts {
		o(&s)
	}
	if s.tracing {
		if _, err := trace.Encode(p, s.traceLevel); err != nil {
			return nil, err
		}
		if p.TraceWords < 2 && s.traceFormat != trace.FormatDecimal {
			return nil, nnx.NewUnsupportedError("trace format "+s.traceFormat.String(), p.Name())
		}
	}

	conservative := s.conservative || (s.simModel && p.SimJobIDUnreliable)
	qopts := []queue.Option{
		queue.WithDepth(p.QueueDepth),
		queue.WithConservativeResolve(conservative),
	}
	if s.logger != nil {
		qopts = append(qopts, queue.WithLogger(s.logger))
	}
	u := &Unit{
		profile:     p,
		dev:         dev,
		queue:       queue.New(dev, w, qopts...),
		platform:    s.platform,
		conf:        s.conf,
		clockHz:     s.clockHz,
		logger:      s.logger,
		tracing:     s.tracing,
		traceLevel:  s.traceLevel,
		traceFormat: s.traceFormat,
	}
	u.metrics.Store(&ffu.Metrics{})
	return u, nil
}

func (u *Unit) logf(format string, args ...interface{}) {
	if u.logger != nil {
		u.logger.Printf(format, args...)
	}
}

// Name returns the FFU name
func (u *Unit) Name() string {
	return "nnx-" + u.profile.Name()
}

// Type returns the FFU type
func (u *Unit) Type() ffu.FFUType {
	switch u.profile.Generation {
	case profile.Ne16:
		return ffu.FFUTypeNE16
	case profile.Neureka:
		return ffu.FFUTypeNeureka
	case profile.NeurekaV2:
		return ffu.FFUTypeNeurekaV2
	default:
		return ffu.FFUTypeUnknown
	}
}

// Profile returns the accelerator profile of the unit.
func (u *Unit) Profile() *profile.Profile { return u.profile }

// Queue returns the job queue of the unit.
func (u *Unit) Queue() *queue.Queue { return u.queue }

func (u *Unit) plan(workload ffu.Workload) (*ffu.ConvWorkload, *task.Descriptor, error) {
	w, ok := workload.(*ffu.ConvWorkload)
	if !ok {
		return nil, nil, nnx.NewUnsupportedError("accel.Execute "+workload.Type(), u.profile.Name())
	}
	d, err := task.Build(u.profile, w.Config)
	if err != nil {
		return nil, nil, err
	}
	return w, d, nil
}

// CanHandle reports whether the workload builds into a valid descriptor
// for this generation.
func (u *Unit) CanHandle(workload ffu.Workload) bool {
	_, _, err := u.plan(workload)
	return err == nil
}

// jobs returns the number of hardware jobs of d.
func (u *Unit) jobs(w *ffu.ConvWorkload, d *task.Descriptor) (int, error) {
	if d.Stride() != 2 {
		return 1, nil
	}
	g, err := stride.GeometryFor(u.profile, w.Config)
	if err != nil {
		return 0, err
	}
	nH, nW := g.Grid()
	return nH * nW, nil
}

// EstimateCost estimates the duration from the subtile counters: every
// subtile iteration streams one weight bit plane per filter tap.
func (u *Unit) EstimateCost(workload ffu.Workload) ffu.Cost {
	w, d, err := u.plan(workload)
	if err != nil {
		return ffu.Unreachable
	}
	jobs, err := u.jobs(w, d)
	if err != nil {
		return ffu.Unreachable
	}

	n := d.Data.Subtile.Number
	perJob := int64(subtile.High(n.KoKi)) * int64(subtile.Low(n.KoKi)) *
		int64(subtile.High(n.HoWo)) * int64(subtile.Low(n.HoWo))
	subtiles := perJob * int64(jobs)
	cycles := subtiles*int64(d.WeightBits()*d.Kernel()*d.Kernel()) + int64(jobs)*nnx.JobOverheadCycles

	seconds := float64(cycles) / u.clockHz
	return ffu.Cost{
		Duration:        time.Duration(float64(cycles) * float64(time.Second) / u.clockHz),
		Jobs:            jobs,
		Subtiles:        subtiles,
		MemoryBandwidth: int64(float64(w.Size()) / seconds),
		Confidence:      0.3,
	}
}

// Execute builds the workload, dispatches it and waits for completion.
func (u *Unit) Execute(workload ffu.Workload) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	start := time.Now()
	jobs, err := u.execute(workload)
	u.record(workload, jobs, time.Since(start), err)
	return err
}

func (u *Unit) execute(workload ffu.Workload) (int, error) {
	w, d, err := u.plan(workload)
	if err != nil {
		return 0, err
	}

	if err := u.queue.Open(u.platform, u.conf); err != nil {
		return 0, err
	}
	if u.tracing {
		if err := trace.Activate(u.dev, u.profile, u.traceLevel, u.traceFormat); err != nil {
			u.queue.Close()
			return 0, err
		}
	}

	jobs := 1
	if d.Stride() == 2 {
		g, err := stride.GeometryFor(u.profile, w.Config)
		if err != nil {
			u.queue.Close()
			return 0, err
		}
		if jobs, err = stride.Dispatch(u.queue, d, g); err != nil {
			u.queue.Close()
			return 0, err
		}
	} else if err := u.queue.DispatchBlocking(d); err != nil {
		u.queue.Close()
		return 0, err
	}
	u.logf("%s: %s dispatched as %d job(s), last id %d", u.Name(), w.Type(), jobs, d.JobID())

	if err := u.queue.ResolveWait(d); err != nil {
		u.queue.Close()
		return jobs, err
	}
	if u.tracing {
		trace.Deactivate(u.dev, u.profile)
	}
	return jobs, u.queue.Close()
}

// record updates the metrics. Callers hold u.mu.
func (u *Unit) record(workload ffu.Workload, jobs int, took time.Duration, err error) {
	metrics := u.metrics.Load().(*ffu.Metrics)
	m := *metrics
	m.LastUsed = time.Now()
	if err != nil {
		m.ErrorCount++
		m.LastError = err
	} else {
		m.WorkloadCount++
		m.JobCount += int64(jobs)
		m.BytesProcessed += workload.Size()
		m.TotalDuration += took
	}
	u.metrics.Store(&m)
}

// IsAvailable returns true; a unit always owns its device.
func (u *Unit) IsAvailable() bool {
	return true
}

// Metrics returns performance metrics for this FFU
func (u *Unit) Metrics() ffu.Metrics {
	return *u.metrics.Load().(*ffu.Metrics)
}
