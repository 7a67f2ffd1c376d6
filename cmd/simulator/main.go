package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/signalsfoundry/airspace-simulator/airspace"
	"github.com/signalsfoundry/airspace-simulator/core"
	"github.com/signalsfoundry/airspace-simulator/internal/config"
	"github.com/signalsfoundry/airspace-simulator/internal/logging"
	"github.com/signalsfoundry/airspace-simulator/internal/observability"
	"github.com/signalsfoundry/airspace-simulator/internal/pilot"
	"github.com/signalsfoundry/airspace-simulator/internal/report"
	"github.com/signalsfoundry/airspace-simulator/timectrl"
)

func main() {
	fs := pflag.NewFlagSet("simulator", pflag.ExitOnError)
	config.RegisterFlags(fs)
	_ = fs.Parse(os.Args[1:])

	configPath, _ := fs.GetString("config")
	cfg, err := config.Load(configPath, fs)
	if err != nil {
		logging.NewWithWriter(os.Stderr, logging.Config{}).Error(context.Background(), "load configuration", logging.Err(err))
		os.Exit(2)
	}

	// Stdout carries prompts and the event report, so console logs go to stderr.
	var log logging.Logger
	if cfg.Log.File != "" {
		log = logging.New(cfg.Logging())
	} else {
		log = logging.NewWithWriter(os.Stderr, cfg.Logging())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, log = logging.WithRunLogger(ctx, log)
	ctx = logging.ContextWithLogger(ctx, log)

	if err := run(ctx, cfg, log, os.Stdin, os.Stdout); err != nil {
		log.Error(ctx, "simulation failed", logging.Err(err))
		stop()
		os.Exit(1)
	}
}

// run executes one simulation as described by cfg. Prompts and the event
// report go to out; prompt answers are read from in.
func run(ctx context.Context, cfg *config.Config, log logging.Logger, in io.Reader, out io.Writer) error {
	promReg := prometheus.NewRegistry()
	simMetrics, err := observability.NewSimCollector(promReg)
	if err != nil {
		return fmt.Errorf("initialise metrics collector: %w", err)
	}
	corrMetrics, err := observability.NewCorrectionCollector(promReg)
	if err != nil {
		return fmt.Errorf("initialise correction metrics: %w", err)
	}
	if metricsSrv := serveMetrics(cfg.Metrics.Addr, simMetrics, log); metricsSrv != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	prompter := pilot.NewPrompter(in, out)

	sc, err := loadScenario(ctx, cfg, prompter)
	if err != nil {
		return err
	}

	regOpts := []airspace.RegistryOption{
		airspace.WithSubscriber(func(e airspace.Event) {
			simMetrics.SetAircraftRegistered(e.Count)
		}),
	}
	if cfg.UniqueIDs {
		regOpts = append(regOpts, airspace.WithUniqueIDs())
	}
	reg, err := sc.BuildRegistry(regOpts...)
	if err != nil {
		return err
	}

	// A step count from flags, env or config file beats the scenario's.
	steps := sc.Steps
	if cfg.StepsSet {
		steps = cfg.Steps
	}

	traceCfg := cfg.Tracer()
	traceCfg.Run.RunID = logging.RunIDFromContext(ctx)
	traceCfg.Run.Capacity = reg.Capacity()
	traceCfg.Run.Aircraft = reg.Count()
	traceCfg.Run.Steps = steps
	shutdownTracing, err := observability.InitTracing(ctx, traceCfg, log)
	if err != nil {
		return fmt.Errorf("initialise tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	events, err := report.NewWriter(out, cfg.Events.Format)
	if err != nil {
		return err
	}

	mode := timectrl.Accelerated
	if !cfg.Accelerated {
		mode = timectrl.RealTime
	}
	tc := timectrl.NewTimeController(time.Now().UTC(), cfg.Tick, mode)

	var (
		corrector core.VelocityCorrector
		scripted  *pilot.Scripted
		engineOpt []core.EngineOption
	)
	switch cfg.Pilot.Mode {
	case "scripted":
		scripted = pilot.NewScripted(sc.Corrections)
		corrector = scripted
	case "interactive":
		ip := pilot.NewInteractive(prompter)
		corrector = ip
		// The operator sees the step's conflicts before being asked.
		engineOpt = append(engineOpt, core.WithConflictSink(ip))
	default:
		corrector = pilot.Noop()
	}

	var collisions int
	engineOpt = append(engineOpt,
		core.WithVelocityCorrector(pilot.Instrument(corrector, corrMetrics)),
		core.WithEventSink(events),
		core.WithEventSink(core.EventSinkFunc(func(_ context.Context, evs []core.Event) error {
			for _, e := range evs {
				if e.Kind == core.EventCollision {
					collisions++
				}
			}
			return nil
		})),
		core.WithCollisionThreshold(cfg.CollisionThreshold),
		core.WithCollisionWorkers(cfg.CollisionWorkers),
		core.WithMetricsRecorder(simMetrics),
		core.WithLogger(log),
		core.WithClock(tc),
	)
	engine := core.NewSimulationEngine(reg, engineOpt...)
	if scripted != nil {
		engine.RegisterTickListener(scripted.Advance)
	}

	tc.AddListener(func(step int, simTime time.Time) {
		log.Debug(ctx, "step committed",
			logging.Int("step", step),
			logging.String("sim_time", simTime.Format(time.RFC3339)),
		)
	})

	log.Info(ctx, "starting simulation",
		logging.Int("aircraft", reg.Count()),
		logging.Int("capacity", reg.Capacity()),
		logging.Int("steps", steps),
		logging.String("pilot", cfg.Pilot.Mode),
		logging.String("mode", mode.String()),
	)

	err = tc.Run(ctx, steps, func(int, time.Time) error {
		_, err := engine.RunStep(ctx)
		return err
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn(ctx, "simulation interrupted", logging.Int("steps_completed", engine.StepsCompleted()))
		}
		return err
	}

	log.Info(ctx, "simulation complete",
		logging.Int("steps", engine.StepsCompleted()),
		logging.Int("collisions", collisions),
	)
	return nil
}

func serveMetrics(addr string, collector *observability.SimCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.String("error", err.Error()))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
