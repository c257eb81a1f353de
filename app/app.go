// Package app wires a kestrel World, thread pool, scheduler, event bus,
// and resource store together behind one façade, the embedding surface a
// host process constructs once at startup.
package app

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kestrel-engine/kestrel"
	"github.com/kestrel-engine/kestrel/config"
	"github.com/kestrel-engine/kestrel/pool"
	"github.com/kestrel-engine/kestrel/scheduler"
	"github.com/kestrel-engine/kestrel/task"
)

// Package is a bundle of component registrations, resource values, and
// system registrations installed into an App in one call.
type Package interface {
	Install(a *App) error
}

// App is the engine façade. Construct with New; it owns a World, a thread
// pool, and a scheduler for the lifetime of the process (or test).
type App struct {
	world     *kestrel.World
	pool      *pool.Pool
	scheduler *scheduler.Scheduler
	events    *kestrel.EventBus
	logger    *zap.Logger
	cfg       *config.Config
}

// New constructs an App from cfg. If cfg is nil, config.Default() is used.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, kestrel.NewError(kestrel.KindFatal, "app.New", err)
	}

	p := pool.New(pool.Config{
		Workers:        cfg.Pool.Workers,
		SpinBound:      cfg.Pool.SpinBound,
		ParkBackoff:    cfg.Pool.ParkBackoff,
		LocalQueueSize: cfg.Pool.LocalQueueSize,
		Logger:         logger,
	})

	a := &App{
		world:  kestrel.NewWorld(),
		pool:   p,
		events: kestrel.NewEventBus(),
		logger: logger,
		cfg:    cfg,
	}
	a.scheduler = scheduler.New(p, logger)
	return a, nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

// World returns the App's entity/component registry.
func (a *App) World() *kestrel.World {
	return a.world
}

// Events returns the App's typed event bus.
func (a *App) Events() *kestrel.EventBus {
	return a.events
}

// Pool returns the App's thread pool, for packages that need to schedule
// raw work outside of a system.
func (a *App) Pool() *pool.Pool {
	return a.pool
}

// Logger returns the App's structured logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// AddPackage installs pkg, propagating any error it returns.
func (a *App) AddPackage(pkg Package) error {
	if err := pkg.Install(a); err != nil {
		return kestrel.NewError(kestrel.KindStructural, "AddPackage", err)
	}
	return nil
}

// GetGlobal returns the resource of type T from the App's world, or nil if
// none has been set.
func GetGlobal[T any](a *App) *T {
	v, ok := kestrel.GetResource[T](a.world.Resources())
	if !ok {
		return nil
	}
	return v
}

// SetGlobal installs v as the App's resource of type T, overwriting any
// existing value of that type.
func SetGlobal[T any](a *App, v *T) {
	kestrel.SetResource(a.world.Resources(), v)
}

// AddSystem registers sys under stageName.
func (a *App) AddSystem(stageName string, sys *scheduler.System) {
	a.scheduler.AddSystem(stageName, sys)
}

// Schedule appends an intent to run stageName on the next RunScheduler
// call.
func (a *App) Schedule(stageName string) {
	a.scheduler.Schedule(stageName)
}

// RunScheduler runs every scheduled stage and returns a task carrying the
// aggregated error, if any.
func (a *App) RunScheduler(ctx context.Context) *task.Task[error] {
	inner := a.scheduler.RunScheduler(ctx)
	out := task.New[error]()
	out.Start()
	inner.Continue(func() {
		_, err := inner.Result()
		out.Finalize(err, nil)
	})
	return out
}

// EnableRaceCheck turns on the scheduler's opt-in runtime check for
// concurrent structural mutation of the App's world.
func (a *App) EnableRaceCheck() {
	a.scheduler.EnableRaceCheck(a.world)
}

// Shutdown stops the App's thread pool, waiting for in-flight work to
// drain. It should be called once, after the last RunScheduler call has
// completed.
func (a *App) Shutdown() {
	a.pool.Stop()
	_ = a.logger.Sync()
}
