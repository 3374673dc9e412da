package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/LynnColeArt/nnx"
	"github.com/LynnColeArt/nnx/bsp"
	"github.com/LynnColeArt/nnx/ffu"
	"github.com/LynnColeArt/nnx/ffu/accel"
	"github.com/LynnColeArt/nnx/hwpe"
	"github.com/LynnColeArt/nnx/profile"
	"github.com/LynnColeArt/nnx/trace"
)

// autoAccel selects the cheapest simulated generation for the job.
const autoAccel = "auto"

func newRunCmd(g *globals) *cobra.Command {
	var (
		conv       convFlags
		uioPath    string
		devMem     bool
		poll       time.Duration
		clusterMem bool
		astral     bool
		safeResolv bool
		maxStall   uint8
		traceLevel string
		hexTrace   bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a job on the simulator or a UIO device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := conv.config()
			if err != nil {
				return err
			}
			w := ffu.NewConvWorkload(cfg)

			var opts []accel.Option
			if l := g.logger(cmd); l != nil {
				opts = append(opts, accel.WithLogger(l))
			}
			if safeResolv {
				opts = append(opts, accel.WithConservativeResolve(true))
			}
			if traceLevel != "" {
				l, err := trace.ParseLevel(traceLevel)
				if err != nil {
					return err
				}
				f := trace.FormatDecimal
				if hexTrace {
					f = trace.FormatHexadecimal
				}
				opts = append(opts, accel.WithTrace(l, f))
			}

			if g.accel == autoAccel {
				if uioPath != "" || devMem || clusterMem {
					return nnx.NewInvalidArgError("run", "--accel auto only runs on the simulator")
				}
				return runAuto(cmd.OutOrStdout(), w, opts)
			}

			p, err := g.profile()
			if err != nil {
				return err
			}
			var (
				dev    hwpe.Device
				waiter bsp.Waiter
				sim    *hwpe.Sim
				uio    *hwpe.UIO
			)
			switch {
			case uioPath != "" && devMem:
				return nnx.NewInvalidArgError("run", "--uio and --mem are exclusive")
			case uioPath != "":
				uio, err = hwpe.OpenUIO(uioPath, nnx.HWPEWindowSize)
				if err != nil {
					return err
				}
				defer uio.Close()
				dev, waiter = uio, uio
			case devMem:
				base := int64(nnx.PulpHWPEBase)
				if astral {
					base = nnx.AstralHWPEBase
				}
				m, err := hwpe.OpenMem("/dev/mem", base, nnx.HWPEWindowSize)
				if err != nil {
					return err
				}
				defer m.Close()
				// No interrupt without a UIO node: the queue re-checks after every wake.
				dev, waiter = m, bsp.WaiterFunc(func() { time.Sleep(poll) })
			default:
				sim = newModelSim(p)
				dev, waiter = sim, sim
				opts = append(opts, accel.WithSimulationModel())
			}
			if clusterMem {
				base := int64(nnx.PulpClusterCtrlBase)
				if astral {
					base = nnx.AstralClusterCtrlBase
				}
				m, err := hwpe.OpenMem("/dev/mem", base, nnx.ClusterCtrlWindowSize)
				if err != nil {
					return err
				}
				defer m.Close()
				opts = append(opts, accel.WithPlatform(
					bsp.NewCluster(m, p.Generation != profile.Ne16), bsp.Conf{MaxStall: maxStall}))
			}

			unit, err := accel.NewUnit(p, hwpe.New(dev), waiter, opts...)
			if err != nil {
				return err
			}
			cost := unit.EstimateCost(w)
			if err := unit.Execute(w); err != nil {
				return err
			}
			report(cmd.OutOrStdout(), unit, w, cost, sim)
			return nil
		},
	}
	conv.register(cmd.Flags())
	fs := cmd.Flags()
	fs.StringVar(&uioPath, "uio", "", "UIO node of the accelerator (default: simulator)")
	fs.BoolVar(&devMem, "mem", false, "map the accelerator registers through /dev/mem and poll for completion")
	fs.DurationVar(&poll, "poll", 10*time.Microsecond, "poll interval with --mem")
	fs.BoolVar(&clusterMem, "cluster-ctrl", false, "program the cluster control unit through /dev/mem")
	fs.BoolVar(&astral, "astral", false, "use the Astral memory map")
	fs.BoolVar(&safeResolv, "conservative", false, "treat only an empty queue as completion")
	fs.Uint8Var(&maxStall, "max-stall", nnx.DefaultMaxStall, "interconnect max stall cycles")
	fs.StringVar(&traceLevel, "trace", "", "simulation trace level (job-start-end, config, activ-inout, debug, all)")
	fs.BoolVar(&hexTrace, "trace-hex", false, "trace values in hexadecimal")
	return cmd
}

// newModelSim returns a simulator behaving like the simulation model of p.
func newModelSim(p *profile.Profile) *hwpe.Sim {
	opts := []hwpe.SimOption{hwpe.WithQueueDepth(p.QueueDepth)}
	if p.SimJobIDUnreliable {
		opts = append(opts, hwpe.WithBrokenJobID())
	}
	return hwpe.NewSim(opts...)
}

// runAuto registers one simulated unit per generation and runs w on the
// cheapest one that can handle it.
func runAuto(out io.Writer, w ffu.Workload, opts []accel.Option) error {
	reg := ffu.NewRegistry()
	sims := make(map[string]*hwpe.Sim)
	for _, p := range profile.All() {
		sim := newModelSim(p)
		unit, err := accel.NewUnit(p, hwpe.New(sim), sim, append(opts, accel.WithSimulationModel())...)
		if nnx.IsUnsupportedError(err) {
			continue
		}
		if err != nil {
			return err
		}
		if err := reg.Register(unit); err != nil {
			return err
		}
		sims[unit.Name()] = sim
	}

	best, cost := reg.FindBest(w)
	if best == nil {
		return nnx.NewUnsupportedError("run "+w.Type(), autoAccel)
	}
	fmt.Fprintf(out, "selected %s of %d unit(s)\n", best.Name(), len(reg.List()))
	if err := best.Execute(w); err != nil {
		return err
	}
	report(out, best, w, *cost, sims[best.Name()])
	return nil
}

func report(out io.Writer, unit ffu.FFU, w ffu.Workload, cost ffu.Cost, sim *hwpe.Sim) {
	m := unit.Metrics()
	fmt.Fprintf(out, "%s %s: %d job(s), %d subtiles, estimated %v, took %v\n",
		unit.Name(), w.Type(), m.JobCount, cost.Subtiles, cost.Duration, m.TotalDuration.Round(time.Microsecond))
	if sim != nil {
		fmt.Fprintf(out, "simulator finished %d job(s)\n", sim.Finished())
	}
}
