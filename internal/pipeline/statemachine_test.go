package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nyralabs/contact-pipeline/internal/domain"
	"github.com/nyralabs/contact-pipeline/internal/observability"
	"github.com/nyralabs/contact-pipeline/internal/store"
)

func newTestMachine(t *testing.T, handler Handler, policy RetryPolicy) (*Machine, *store.MemoryStore) {
	t.Helper()

	instances := store.NewMemoryStore()
	classifier := NewClassifier(testEntities(), "higherself_core")

	dispatcher := NewDispatcher()
	for _, capability := range []string{"wellness-welcome", "artist-onboarding", "partner-followup", "general-followup"} {
		dispatcher.Register(capability, handler)
	}
	require.NoError(t, dispatcher.Validate(testEntities()))

	machine := NewMachine(MachineDeps{
		Store:          instances,
		Dispatcher:     dispatcher,
		Classifier:     classifier,
		Metrics:        observability.NewMetrics(),
		Logger:         zap.NewNop(),
		Policy:         policy,
		HandlerTimeout: time.Second,
	})
	return machine, instances
}

func admittedEvent(t *testing.T, machine *Machine, message string) *domain.ContactEvent {
	t.Helper()

	ev, err := Normalize("contact_form", map[string]string{
		"email":   "a@x.com",
		"message": message,
	})
	require.NoError(t, err)
	machine.classifier.Classify(ev)
	_, err = machine.Admit(context.Background(), ev)
	require.NoError(t, err)
	return ev
}

func stateSequence(instance *domain.WorkflowInstance) []domain.State {
	states := make([]domain.State, 0, len(instance.History))
	for _, entry := range instance.History {
		states = append(states, entry.State)
	}
	return states
}

func assertHistoryInvariants(t *testing.T, instance *domain.WorkflowInstance) {
	t.Helper()
	require.NotEmpty(t, instance.History)
	assert.Equal(t, instance.History[len(instance.History)-1].State, instance.CurrentState,
		"currentState must match the last history entry")
	for i, entry := range instance.History[:len(instance.History)-1] {
		assert.NotNil(t, entry.ExitedAt, "history entry %d (%s) should be exited", i, entry.State)
	}
}

func TestMachine_Admit(t *testing.T) {
	machine, instances := newTestMachine(t, noopHandler(), DefaultRetryPolicy())

	ev := admittedEvent(t, machine, "interested in wellness session")

	instance, err := instances.Get(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateQueued, instance.CurrentState)
	assert.Equal(t, []domain.State{domain.StateReceived, domain.StateClassified, domain.StateQueued},
		stateSequence(instance))
	assertHistoryInvariants(t, instance)
}

func TestMachine_HappyPathCompletes(t *testing.T) {
	var calls atomic.Int32
	handler := HandlerFunc(func(ctx context.Context, task domain.AgentTask) (Result, error) {
		calls.Add(1)
		return Result{RecordID: "rec-1"}, nil
	})
	machine, instances := newTestMachine(t, handler, DefaultRetryPolicy())

	ev := admittedEvent(t, machine, "interested in wellness session")
	require.NoError(t, machine.Process(context.Background(), ev))

	instance, err := instances.Get(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCompleted, instance.CurrentState)
	assert.Equal(t, []domain.State{
		domain.StateReceived, domain.StateClassified, domain.StateQueued,
		domain.StateAssigned, domain.StateInProgress, domain.StateCompleted,
	}, stateSequence(instance))
	assert.Equal(t, 0, instance.AttemptCount, "attemptCount resets on successful exit")
	assert.Nil(t, instance.LastError)
	assert.Equal(t, int32(1), calls.Load())
	assertHistoryInvariants(t, instance)
}

func TestMachine_TaskPayloadIsSubsetOfNormalizedFields(t *testing.T) {
	var got domain.AgentTask
	handler := HandlerFunc(func(ctx context.Context, task domain.AgentTask) (Result, error) {
		got = task
		return Result{}, nil
	})
	machine, _ := newTestMachine(t, handler, DefaultRetryPolicy())

	ev := admittedEvent(t, machine, "interested in wellness session")
	require.NoError(t, machine.Process(context.Background(), ev))

	assert.Equal(t, ev.ID, got.InstanceID)
	assert.Equal(t, "the_7_space", got.Entity)
	assert.Equal(t, "wellness-welcome", got.Capability)
	assert.Equal(t, "a@x.com", got.Payload[domain.FieldEmail])
	assert.NotContains(t, got.Payload, domain.FieldSubject)
	require.NotNil(t, got.Deadline)
}

func TestMachine_RetryBoundIsExact(t *testing.T) {
	var calls atomic.Int32
	handler := HandlerFunc(func(ctx context.Context, task domain.AgentTask) (Result, error) {
		calls.Add(1)
		return Result{}, Transient(errors.New("record store timeout"))
	})
	policy := RetryPolicy{MaxAttempts: 3}
	machine, instances := newTestMachine(t, handler, policy)

	ev := admittedEvent(t, machine, "interested in wellness session")
	require.NoError(t, machine.Process(context.Background(), ev))

	instance, err := instances.Get(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateFailedTerminal, instance.CurrentState)
	assert.Equal(t, int32(3), calls.Load(), "exactly maxAttempts handler invocations")
	assert.Equal(t, 3, instance.AttemptCount)
	require.NotNil(t, instance.LastError)
	assert.Contains(t, *instance.LastError, "TransientDependencyError")
	assertHistoryInvariants(t, instance)

	// Each failed attempt appears in history as failedRetryable.
	retryable := 0
	for _, entry := range instance.History {
		if entry.State == domain.StateFailedRetryable {
			retryable++
		}
	}
	assert.Equal(t, 3, retryable)
}

func TestMachine_PermanentErrorSkipsRetries(t *testing.T) {
	var calls atomic.Int32
	handler := HandlerFunc(func(ctx context.Context, task domain.AgentTask) (Result, error) {
		calls.Add(1)
		return Result{}, Permanent(errors.New("record rejected"))
	})
	machine, instances := newTestMachine(t, handler, DefaultRetryPolicy())

	ev := admittedEvent(t, machine, "interested in wellness session")
	require.NoError(t, machine.Process(context.Background(), ev))

	instance, err := instances.Get(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateFailedTerminal, instance.CurrentState)
	assert.Equal(t, int32(1), calls.Load())
	require.NotNil(t, instance.LastError)
	assert.Contains(t, *instance.LastError, "PermanentDependencyError")
}

func TestMachine_TransientThenSuccess(t *testing.T) {
	var calls atomic.Int32
	handler := HandlerFunc(func(ctx context.Context, task domain.AgentTask) (Result, error) {
		if calls.Add(1) == 1 {
			return Result{}, Transient(errors.New("flaky"))
		}
		return Result{}, nil
	})
	machine, instances := newTestMachine(t, handler, RetryPolicy{MaxAttempts: 3})

	ev := admittedEvent(t, machine, "interested in wellness session")
	require.NoError(t, machine.Process(context.Background(), ev))

	instance, err := instances.Get(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCompleted, instance.CurrentState)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 0, instance.AttemptCount)
	assert.Nil(t, instance.LastError)
}

func TestMachine_UnclassifiedErrorIsRetried(t *testing.T) {
	var calls atomic.Int32
	handler := HandlerFunc(func(ctx context.Context, task domain.AgentTask) (Result, error) {
		calls.Add(1)
		return Result{}, errors.New("handler forgot to classify this")
	})
	machine, instances := newTestMachine(t, handler, RetryPolicy{MaxAttempts: 2})

	ev := admittedEvent(t, machine, "interested in wellness session")
	require.NoError(t, machine.Process(context.Background(), ev))

	instance, err := instances.Get(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateFailedTerminal, instance.CurrentState)
	assert.Equal(t, int32(2), calls.Load())
}

func TestMachine_AtMostOneActiveHandler(t *testing.T) {
	var active atomic.Int32
	var calls atomic.Int32
	handler := HandlerFunc(func(ctx context.Context, task domain.AgentTask) (Result, error) {
		calls.Add(1)
		require.Equal(t, int32(1), active.Add(1), "two handlers hold the same instance")
		time.Sleep(30 * time.Millisecond)
		active.Add(-1)
		return Result{}, nil
	})
	machine, instances := newTestMachine(t, handler, DefaultRetryPolicy())

	ev := admittedEvent(t, machine, "interested in wellness session")

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = machine.Process(context.Background(), ev)
		}()
	}
	wg.Wait()

	// The loser of the lock race observes the terminal state and skips.
	assert.Equal(t, int32(1), calls.Load())
	instance, err := instances.Get(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCompleted, instance.CurrentState)
}

func TestMachine_ShutdownLeavesInstanceRetryable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	handler := HandlerFunc(func(handlerCtx context.Context, task domain.AgentTask) (Result, error) {
		cancel()
		<-handlerCtx.Done()
		return Result{}, handlerCtx.Err()
	})
	machine, instances := newTestMachine(t, handler, RetryPolicy{MaxAttempts: 3})

	ev := admittedEvent(t, machine, "interested in wellness session")
	err := machine.Process(ctx, ev)
	assert.ErrorIs(t, err, context.Canceled)

	instance, getErr := instances.Get(context.Background(), ev.ID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.StateFailedRetryable, instance.CurrentState,
		"interrupted instances stay retryable for reprocessing on restart")
	assert.False(t, instance.CurrentState.IsTerminal())
}

func TestMachine_DisallowedDispatchFailsTerminally(t *testing.T) {
	// An intake-only entity never permits agent dispatch.
	entities := []domain.BusinessEntityConfig{
		{
			EntityKey:              "intake_only",
			ClassificationKeywords: []string{"archive"},
			AllowedStates: []domain.State{
				domain.StateReceived, domain.StateClassified, domain.StateQueued,
				domain.StateFailedTerminal,
			},
			AgentCapabilityMap: map[domain.IntentCategory]string{
				domain.IntentGeneralInquiry: "general-followup",
			},
		},
	}

	var calls atomic.Int32
	handler := HandlerFunc(func(ctx context.Context, task domain.AgentTask) (Result, error) {
		calls.Add(1)
		return Result{}, nil
	})
	dispatcher := NewDispatcher()
	dispatcher.Register("general-followup", handler)

	instances := store.NewMemoryStore()
	machine := NewMachine(MachineDeps{
		Store:      instances,
		Dispatcher: dispatcher,
		Classifier: NewClassifier(entities, "intake_only"),
		Logger:     zap.NewNop(),
		Policy:     DefaultRetryPolicy(),
	})

	ev := admittedEvent(t, machine, "please archive this")
	require.NoError(t, machine.Process(context.Background(), ev))

	instance, err := instances.Get(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateFailedTerminal, instance.CurrentState)
	assert.Equal(t, int32(0), calls.Load(), "handler must never run for a disallowed dispatch")
	require.NotNil(t, instance.LastError)
	assert.Contains(t, *instance.LastError, "does not permit agent dispatch")
}

func TestMachine_Reject(t *testing.T) {
	machine, instances := newTestMachine(t, noopHandler(), DefaultRetryPolicy())

	ev := admittedEvent(t, machine, "interested in wellness session")
	instance, err := instances.Get(context.Background(), ev.ID)
	require.NoError(t, err)

	require.NoError(t, machine.Reject(context.Background(), instance, "QueueFullError"))

	stored, err := instances.Get(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateFailedTerminal, stored.CurrentState)
	require.NotNil(t, stored.LastError)
	assert.Equal(t, "QueueFullError", *stored.LastError)
}
