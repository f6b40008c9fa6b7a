// Package worker runs one goroutine per business-entity partition. A single
// consumer per partition is what guarantees per-entity, per-contact ordering:
// two events for the same contact can never be in flight at once.
package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/nyralabs/contact-pipeline/internal/pipeline"
)

// Pool owns the partition workers and their shutdown sequence.
type Pool struct {
	queues  *pipeline.QueueSet
	machine *pipeline.Machine
	logger  *zap.Logger
	grace   time.Duration

	wg      sync.WaitGroup
	running map[string]*atomic.Bool

	stopIntake  context.CancelFunc
	forceCancel context.CancelFunc
	workCtx     context.Context
	drainCtx    context.Context
}

// NewPool builds a pool over every partition in the queue set.
func NewPool(queues *pipeline.QueueSet, machine *pipeline.Machine, logger *zap.Logger, grace time.Duration) *Pool {
	if grace <= 0 {
		grace = 15 * time.Second
	}
	running := make(map[string]*atomic.Bool, len(queues.Entities()))
	for _, entity := range queues.Entities() {
		running[entity] = &atomic.Bool{}
	}
	return &Pool{
		queues:  queues,
		machine: machine,
		logger:  logger,
		grace:   grace,
		running: running,
	}
}

// Start launches one worker per partition.
func (p *Pool) Start() {
	p.workCtx, p.stopIntake = context.WithCancel(context.Background())
	p.drainCtx, p.forceCancel = context.WithCancel(context.Background())

	for entity := range p.running {
		p.running[entity].Store(true)
		p.wg.Add(1)
		go p.run(entity)
	}
	p.logger.Info("partition workers started", zap.Int("partitions", len(p.running)))
}

func (p *Pool) run(entity string) {
	defer p.wg.Done()
	defer p.running[entity].Store(false)

	log := p.logger.With(zap.String("entity", entity))
	log.Info("partition worker running")

	for {
		// Intake context only: once shutdown begins we stop pulling but
		// keep draining the event already in hand.
		ev, err := p.queues.Dequeue(p.workCtx, entity)
		if err != nil {
			log.Info("partition worker stopping", zap.Error(err))
			return
		}

		if err := p.machine.Process(p.drainCtx, ev); err != nil {
			log.Warn("event processing aborted",
				zap.String("event_id", ev.ID),
				zap.Error(err))
		}
	}
}

// Stop drains in-flight work up to the grace deadline, then force-cancels
// remaining handler calls. Interrupted instances are left failedRetryable by
// the state machine so a restart reprocesses them.
func (p *Pool) Stop() {
	if p.stopIntake == nil {
		return
	}
	p.stopIntake()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(p.grace):
		p.logger.Warn("shutdown grace elapsed; canceling in-flight handlers")
		p.forceCancel()
		<-done
	}
	p.forceCancel()
	p.logger.Info("partition workers stopped")
}

// Running reports whether every partition worker is alive.
func (p *Pool) Running() bool {
	for _, flag := range p.running {
		if !flag.Load() {
			return false
		}
	}
	return len(p.running) > 0
}

// RunningByEntity snapshots per-partition liveness.
func (p *Pool) RunningByEntity() map[string]bool {
	out := make(map[string]bool, len(p.running))
	for entity, flag := range p.running {
		out[entity] = flag.Load()
	}
	return out
}
