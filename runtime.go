package trireme

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brickingsoft/rxp"
	"github.com/linearregression/trireme/security"
	"github.com/rs/zerolog"
)

// Runtime is the shipped scheduling capability: one event-loop goroutine all
// connection work runs on, plus an rxp-backed pool for blocking work.
type Runtime interface {
	security.Runtime
	// Dispatch posts a job onto the event loop under the current domain.
	// This is how the upper layer enters connection code.
	Dispatch(job func())
	Close() (err error)
	CloseGracefully() (err error)
}

func NewRuntime(options ...Option) (rt Runtime, err error) {
	opt := Options{
		RxpOptions:        rxp.Options{},
		EventLoopCapacity: DefaultEventLoopCapacity,
		Logger:            zerolog.Nop(),
	}
	for _, option := range options {
		if err = option(&opt); err != nil {
			return
		}
	}

	executors := rxp.New(opt.AsRxpOptions()...)
	ctx := rxp.With(context.Background(), executors)

	r := &runtime{
		ctx:       ctx,
		executors: executors,
		ready:     make(chan eventLoopJob, opt.EventLoopCapacity),
		wg:        new(sync.WaitGroup),
		log:       opt.Logger.With().Str("pkg", "trireme").Logger(),
	}
	r.running.Store(true)
	r.wg.Add(1)
	go r.process()
	rt = r
	return
}

type eventLoopJob struct {
	job    func()
	domain any
}

type domainBox struct {
	v any
}

type runtime struct {
	ctx       context.Context
	executors rxp.Executors
	ready     chan eventLoopJob
	running   atomic.Bool
	locker    sync.RWMutex
	wg        *sync.WaitGroup
	domain    atomic.Value
	log       zerolog.Logger
}

func (rt *runtime) process() {
	defer rt.wg.Done()
	for entry := range rt.ready {
		rt.domain.Store(domainBox{v: entry.domain})
		entry.job()
		rt.domain.Store(domainBox{})
	}
}

func (rt *runtime) Dispatch(job func()) {
	rt.PostToEventLoop(job, rt.Domain())
}

func (rt *runtime) PostToEventLoop(job func(), domain any) {
	if job == nil {
		return
	}
	rt.locker.RLock()
	if rt.running.Load() {
		rt.ready <- eventLoopJob{job: job, domain: domain}
	} else {
		rt.log.Trace().Msg("job dropped, event loop is closed")
	}
	rt.locker.RUnlock()
}

func (rt *runtime) Domain() (domain any) {
	box, _ := rt.domain.Load().(domainBox)
	domain = box.v
	return
}

const (
	ns500 = 500 * time.Nanosecond
)

type blockingTask struct {
	job func()
}

func (task *blockingTask) Handle(ctx context.Context) {
	task.job()
}

// SubmitBlocking hands the job to the pool, waiting out momentary pool
// exhaustion instead of dropping the job. Once the runtime is closed the job
// is dropped.
func (rt *runtime) SubmitBlocking(job func()) {
	if job == nil {
		return
	}
	task := &blockingTask{job: job}
	for {
		if ok := rxp.TryExecute(rt.ctx, task); ok {
			return
		}
		if !rt.running.Load() {
			return
		}
		time.Sleep(ns500)
	}
}

func (rt *runtime) Close() (err error) {
	if !rt.shutdown() {
		return
	}
	err = rt.executors.Close()
	return
}

func (rt *runtime) CloseGracefully() (err error) {
	if !rt.shutdown() {
		return
	}
	err = rt.executors.CloseGracefully()
	return
}

func (rt *runtime) shutdown() bool {
	rt.locker.Lock()
	if !rt.running.CompareAndSwap(true, false) {
		rt.locker.Unlock()
		return false
	}
	close(rt.ready)
	rt.locker.Unlock()
	// Wait outside the lock so draining jobs can still observe the stopped
	// state through PostToEventLoop.
	rt.wg.Wait()
	rt.log.Debug().Msg("event loop closed")
	return true
}
