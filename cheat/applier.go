package cheat

import (
	"context"
	"errors"
	"sync"
	"time"

	"memcheat/process"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// DefaultInterval is one frame at 60Hz
const DefaultInterval = 16 * time.Millisecond

// Gate serializes target access between scans and apply ticks. *sync.Mutex satisfies it.
type Gate interface {
	sync.Locker
	TryLock() bool
}

// Stats counts what the apply loop has done since it was created
type Stats struct {
	Ticks     uint64
	Applied   uint64
	Skipped   uint64
	Failures  uint64
	Warnings  uint64 // distinct failures logged
	LastError error
}

type ApplierOption func(*Applier)

func WithInterval(d time.Duration) ApplierOption {
	return func(a *Applier) {
		if d > 0 {
			a.interval = d
		}
	}
}

// WithResultHandler is called from the loop goroutine after every tick
func WithResultHandler(fn func(ApplyResult, error)) ApplierOption {
	return func(a *Applier) {
		a.onResult = fn
	}
}

type applyReply struct {
	res ApplyResult
	err error
}

// Applier re-applies a List on a fixed tick. A tick never waits for the gate:
// when a scan holds it the tick is skipped, not queued.
type Applier struct {
	list     *List
	acc      process.MemoryAccessor
	gate     Gate
	interval time.Duration
	onResult func(ApplyResult, error)
	log      *logger.Logger

	requests chan chan applyReply

	mu      sync.Mutex
	running bool
	done    chan struct{}
	stats   Stats
}

func NewApplier(list *List, acc process.MemoryAccessor, gate Gate, options ...ApplierOption) *Applier {
	a := &Applier{
		list:     list,
		acc:      acc,
		gate:     gate,
		interval: DefaultInterval,
		log:      logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "applier")),
		requests: make(chan chan applyReply),
	}

	for _, opt := range options {
		opt(a)
	}

	return a
}

func (a *Applier) Interval() time.Duration {
	return a.interval
}

func (a *Applier) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// Run ticks until ctx is cancelled and returns ctx.Err()
func (a *Applier) Run(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return ErrAlreadyRunning
	}
	done := make(chan struct{})
	a.running = true
	a.done = done
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
		close(done)
	}()

	a.log.Infoln("Apply loop started, interval", a.interval)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.log.Infoln("Apply loop stopped")
			return ctx.Err()
		case <-ticker.C:
			a.tick()
		case reply := <-a.requests:
			res, err := a.tick()
			reply <- applyReply{res: res, err: err}
		}
	}
}

// Trigger asks the running loop for an immediate tick and waits for its result
func (a *Applier) Trigger(ctx context.Context) (ApplyResult, error) {
	a.mu.Lock()
	running, done := a.running, a.done
	a.mu.Unlock()

	if !running {
		return ApplyResult{}, ErrNotRunning
	}

	reply := make(chan applyReply, 1)

	select {
	case a.requests <- reply:
	case <-done:
		return ApplyResult{}, ErrNotRunning
	case <-ctx.Done():
		return ApplyResult{}, ctx.Err()
	}

	select {
	case r := <-reply:
		return r.res, r.err
	case <-ctx.Done():
		return ApplyResult{}, ctx.Err()
	}
}

func (a *Applier) tick() (ApplyResult, error) {
	var res ApplyResult
	var err error

	if a.gate.TryLock() {
		res, err = a.list.Apply(a.acc)
		a.gate.Unlock()
	} else {
		err = ErrSkipped
	}

	var failure error

	a.mu.Lock()
	prev := a.stats.LastError
	a.stats.Ticks++
	switch {
	case errors.Is(err, ErrSkipped):
		a.stats.Skipped++
	case err != nil:
		failure = err
	default:
		a.stats.Applied++
		a.stats.Failures += uint64(len(res.Failures))
		if len(res.Failures) > 0 {
			failure = res.Failures[len(res.Failures)-1]
		}
	}

	// the loop ticks every frame, only report a failure when it changes
	report := failure != nil && (prev == nil || prev.Error() != failure.Error())
	if failure != nil {
		a.stats.LastError = failure
	}
	if report {
		a.stats.Warnings++
	}
	a.mu.Unlock()

	if report {
		a.log.Warn("Apply failed: ", failure)
	}

	if a.onResult != nil {
		a.onResult(res, err)
	}
	return res, err
}

func (a *Applier) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}
