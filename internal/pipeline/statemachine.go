package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nyralabs/contact-pipeline/internal/domain"
	"github.com/nyralabs/contact-pipeline/internal/observability"
	"github.com/nyralabs/contact-pipeline/internal/store"
)

// Machine drives workflow instances through their states. It is the only
// component that writes CurrentState or appends history; everything else
// observes instances read-only through the store.
type Machine struct {
	store          store.InstanceStore
	dispatcher     *Dispatcher
	classifier     *Classifier
	metrics        *observability.Metrics
	logger         *zap.Logger
	policy         RetryPolicy
	handlerTimeout time.Duration

	// locks holds one refcounted mutex per live instance so no two
	// goroutines ever handle the same instance concurrently, even if a
	// partition worker is misconfigured to overlap.
	lockMu sync.Mutex
	locks  map[string]*instanceLock
}

type instanceLock struct {
	mu   sync.Mutex
	refs int
}

// MachineDeps bundles the machine's collaborators.
type MachineDeps struct {
	Store          store.InstanceStore
	Dispatcher     *Dispatcher
	Classifier     *Classifier
	Metrics        *observability.Metrics
	Logger         *zap.Logger
	Policy         RetryPolicy
	HandlerTimeout time.Duration
}

// NewMachine constructs the state machine.
func NewMachine(deps MachineDeps) *Machine {
	if deps.HandlerTimeout <= 0 {
		deps.HandlerTimeout = 10 * time.Second
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Machine{
		store:          deps.Store,
		dispatcher:     deps.Dispatcher,
		classifier:     deps.Classifier,
		metrics:        deps.Metrics,
		logger:         deps.Logger,
		policy:         deps.Policy,
		handlerTimeout: deps.HandlerTimeout,
		locks:          make(map[string]*instanceLock),
	}
}

// Admit creates the workflow instance for a freshly classified event and
// walks it received → classified → queued. The caller enqueues the event
// afterward; call Reject if the queue turns it away.
func (m *Machine) Admit(ctx context.Context, ev *domain.ContactEvent) (*domain.WorkflowInstance, error) {
	instance := domain.NewWorkflowInstance(ev.ID, ev.BusinessEntity, ev.ReceivedAt)
	m.applyTransition(instance, domain.StateClassified)
	m.applyTransition(instance, domain.StateQueued)
	if err := m.store.Create(ctx, instance); err != nil {
		return nil, err
	}
	return instance, nil
}

// Reject terminates an admitted instance that could not be enqueued.
func (m *Machine) Reject(ctx context.Context, instance *domain.WorkflowInstance, reason string) error {
	m.applyTransition(instance, domain.StateFailedTerminal)
	instance.LastError = &reason
	return m.store.Update(ctx, instance)
}

// Process runs a dequeued event to a terminal state, or to failedRetryable
// when ctx is canceled mid-flight so the event is reprocessed on restart.
func (m *Machine) Process(ctx context.Context, ev *domain.ContactEvent) error {
	unlock := m.lockInstance(ev.ID)
	defer unlock()

	instance, err := m.store.Get(ctx, ev.ID)
	if err != nil {
		return err
	}
	if instance.CurrentState.IsTerminal() {
		m.logger.Warn("skipping event in terminal state",
			zap.String("event_id", ev.ID),
			zap.String("state", string(instance.CurrentState)))
		return nil
	}

	entity, ok := m.classifier.EntityConfig(ev.BusinessEntity)
	if !ok {
		return m.fail(ctx, instance, "unknown business entity "+ev.BusinessEntity)
	}
	if !entity.Allows(domain.StateAssigned) {
		return m.fail(ctx, instance, "entity "+ev.BusinessEntity+" does not permit agent dispatch")
	}

	maxAttempts := m.policy.AttemptsFor(domain.StateAssigned)
	for attempt := 1; ; attempt++ {
		ev.LastSeenAt = time.Now().UTC()

		if err := m.transition(ctx, instance, domain.StateAssigned); err != nil {
			return err
		}

		handler, capability, err := m.dispatcher.Resolve(entity, ev.IntentCategory)
		if err != nil {
			// Validate catches this at startup; reaching it here means the
			// registry and config diverged, which retrying cannot fix.
			return m.fail(ctx, instance, err.Error())
		}
		task := m.buildTask(ev, capability)

		if err := m.transition(ctx, instance, domain.StateInProgress); err != nil {
			return err
		}

		handlerErr := m.invoke(ctx, handler, task)
		if handlerErr == nil {
			instance.AttemptCount = 0
			instance.LastError = nil
			if err := m.transition(ctx, instance, domain.StateCompleted); err != nil {
				return err
			}
			m.metrics.RecordProcessed()
			m.logger.Info("event completed",
				zap.String("event_id", ev.ID),
				zap.String("entity", ev.BusinessEntity),
				zap.String("capability", capability))
			return nil
		}

		if IsPermanent(handlerErr) {
			m.metrics.RecordFailed()
			return m.fail(ctx, instance, handlerErr.Error())
		}

		// Transient by classification, and anything unclassified is treated
		// as transient so a sloppy handler cannot silently lose events.
		instance.AttemptCount = attempt
		errText := handlerErr.Error()
		instance.LastError = &errText
		if err := m.transition(ctx, instance, domain.StateFailedRetryable); err != nil {
			return err
		}

		if ctx.Err() != nil {
			// Shutdown: leave the instance in failedRetryable so a restart
			// picks it up again. At-least-once, never lost.
			m.logger.Warn("handler interrupted by shutdown",
				zap.String("event_id", ev.ID),
				zap.Int("attempt", attempt))
			return ctx.Err()
		}

		if attempt >= maxAttempts {
			m.metrics.RecordFailed()
			m.logger.Warn("retry attempts exhausted",
				zap.String("event_id", ev.ID),
				zap.Int("attempts", attempt),
				zap.String("last_error", errText))
			return m.transition(ctx, instance, domain.StateFailedTerminal)
		}

		delay := m.policy.Delay(attempt)
		m.logger.Info("retrying after transient failure",
			zap.String("event_id", ev.ID),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.String("error", errText))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (m *Machine) invoke(ctx context.Context, handler Handler, task domain.AgentTask) error {
	callCtx, cancel := context.WithTimeout(ctx, m.handlerTimeout)
	defer cancel()

	_, err := handler.Handle(callCtx, task)
	if err == nil {
		return nil
	}
	// A collaborator timeout is a transient failure of this transition,
	// never a process-level problem.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Transient(err)
	}
	return err
}

func (m *Machine) buildTask(ev *domain.ContactEvent, capability string) domain.AgentTask {
	payload := make(map[string]string, 4)
	for _, key := range []string{domain.FieldName, domain.FieldEmail, domain.FieldPhone, domain.FieldMessage} {
		if val := ev.NormalizedFields[key]; val != "" {
			payload[key] = val
		}
	}
	deadline := time.Now().UTC().Add(m.handlerTimeout)
	return domain.AgentTask{
		InstanceID: ev.ID,
		Entity:     ev.BusinessEntity,
		Capability: capability,
		Payload:    payload,
		Deadline:   &deadline,
	}
}

func (m *Machine) fail(ctx context.Context, instance *domain.WorkflowInstance, reason string) error {
	instance.LastError = &reason
	return m.transition(ctx, instance, domain.StateFailedTerminal)
}

// transition appends a history entry, moves CurrentState and persists.
// This is the single mutation point for workflow state.
func (m *Machine) transition(ctx context.Context, instance *domain.WorkflowInstance, next domain.State) error {
	m.applyTransition(instance, next)
	if err := m.store.Update(ctx, instance); err != nil {
		return err
	}
	m.logger.Debug("state transition",
		zap.String("event_id", instance.EventID),
		zap.String("state", string(next)),
		zap.Int("attempt_count", instance.AttemptCount))
	return nil
}

func (m *Machine) applyTransition(instance *domain.WorkflowInstance, next domain.State) {
	now := time.Now().UTC()
	if n := len(instance.History); n > 0 {
		last := &instance.History[n-1]
		if last.ExitedAt == nil {
			last.ExitedAt = &now
			if m.metrics != nil {
				m.metrics.ObserveStateLatency(string(last.State), now.Sub(last.EnteredAt))
			}
		}
	}
	instance.History = append(instance.History, domain.StateTransition{State: next, EnteredAt: now})
	instance.CurrentState = next
	instance.UpdatedAt = now
}

func (m *Machine) lockInstance(eventID string) func() {
	m.lockMu.Lock()
	lock := m.locks[eventID]
	if lock == nil {
		lock = &instanceLock{}
		m.locks[eventID] = lock
	}
	lock.refs++
	m.lockMu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		m.lockMu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(m.locks, eventID)
		}
		m.lockMu.Unlock()
	}
}
