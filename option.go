package trireme

import (
	"time"

	"github.com/brickingsoft/rxp"
	"github.com/brickingsoft/rxp/pkg/maxprocs"
	"github.com/rs/zerolog"
)

const (
	DefaultEventLoopCapacity = 1024
)

type Options struct {
	RxpOptions        rxp.Options
	EventLoopCapacity int
	Logger            zerolog.Logger
}

func (options *Options) AsRxpOptions() []rxp.Option {
	opts := make([]rxp.Option, 0, 1)
	if n := options.RxpOptions.MaxprocsOptions.MinGOMAXPROCS; n > 0 {
		opts = append(opts, rxp.MinGOMAXPROCS(n))
	}
	if fn := options.RxpOptions.MaxprocsOptions.Procs; fn != nil {
		opts = append(opts, rxp.Procs(fn))
	}
	if fn := options.RxpOptions.MaxprocsOptions.RoundQuotaFunc; fn != nil {
		opts = append(opts, rxp.RoundQuotaFunc(fn))
	}
	if n := options.RxpOptions.MaxGoroutines; n > 0 {
		opts = append(opts, rxp.MaxGoroutines(n))
	}
	if n := options.RxpOptions.MaxReadyGoroutinesIdleDuration; n > 0 {
		opts = append(opts, rxp.MaxReadyGoroutinesIdleDuration(n))
	}
	if n := options.RxpOptions.CloseTimeout; n > 0 {
		opts = append(opts, rxp.WithCloseTimeout(n))
	}
	return opts
}

type Option func(options *Options) (err error)

// WithEventLoopCapacity sets how many posted jobs the event loop buffers
// before posters block. Default is 1024.
func WithEventLoopCapacity(capacity int) Option {
	return func(options *Options) (err error) {
		if capacity > 0 {
			options.EventLoopCapacity = capacity
		}
		return
	}
}

// WithLogger sets the runtime logger. Connections do not inherit it; they take
// their own through security.WithLogger.
func WithLogger(logger zerolog.Logger) Option {
	return func(options *Options) (err error) {
		options.Logger = logger
		return
	}
}

// WithMinGOMAXPROCS sets the minimum GOMAXPROCS for the blocking pool.
// Mostly useful inside containers.
func WithMinGOMAXPROCS(n int) Option {
	return func(options *Options) error {
		return rxp.MinGOMAXPROCS(n)(&options.RxpOptions)
	}
}

// WithProcsFunc sets the GOMAXPROCS build function.
func WithProcsFunc(fn maxprocs.ProcsFunc) Option {
	return func(options *Options) error {
		return rxp.Procs(fn)(&options.RxpOptions)
	}
}

// WithRoundQuotaFunc sets the rounding function for cpu quotas.
func WithRoundQuotaFunc(fn maxprocs.RoundQuotaFunc) Option {
	return func(options *Options) error {
		return rxp.RoundQuotaFunc(fn)(&options.RxpOptions)
	}
}

// WithMaxGoroutines caps the blocking pool size.
func WithMaxGoroutines(n int) Option {
	return func(options *Options) error {
		return rxp.MaxGoroutines(n)(&options.RxpOptions)
	}
}

// WithMaxReadyGoroutinesIdleDuration sets how long an idle pool goroutine is
// kept ready.
func WithMaxReadyGoroutinesIdleDuration(d time.Duration) Option {
	return func(options *Options) error {
		return rxp.MaxReadyGoroutinesIdleDuration(d)(&options.RxpOptions)
	}
}

// WithCloseTimeout bounds a graceful close of the blocking pool.
func WithCloseTimeout(timeout time.Duration) Option {
	return func(options *Options) error {
		return rxp.WithCloseTimeout(timeout)(&options.RxpOptions)
	}
}
