package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyralabs/contact-pipeline/internal/domain"
)

func noopHandler() Handler {
	return HandlerFunc(func(ctx context.Context, task domain.AgentTask) (Result, error) {
		return Result{}, nil
	})
}

func TestDispatcher_Resolve(t *testing.T) {
	d := NewDispatcher()
	d.Register("wellness-welcome", noopHandler())

	entity := testEntities()[0]
	handler, capability, err := d.Resolve(entity, domain.IntentWellnessClient)
	require.NoError(t, err)
	assert.NotNil(t, handler)
	assert.Equal(t, "wellness-welcome", capability)
}

func TestDispatcher_ResolveFallsBackToGeneralCapability(t *testing.T) {
	d := NewDispatcher()
	d.Register("general-followup", noopHandler())

	entity := testEntities()[0]
	// eventAttendee is not mapped for this entity; the general capability
	// picks it up.
	handler, capability, err := d.Resolve(entity, domain.IntentEventAttendee)
	require.NoError(t, err)
	assert.NotNil(t, handler)
	assert.Equal(t, "general-followup", capability)
}

func TestDispatcher_ResolveUnregisteredCapability(t *testing.T) {
	d := NewDispatcher()

	entity := testEntities()[0]
	_, _, err := d.Resolve(entity, domain.IntentWellnessClient)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}

func TestDispatcher_ValidateFailsFast(t *testing.T) {
	d := NewDispatcher()
	d.Register("wellness-welcome", noopHandler())
	d.Register("general-followup", noopHandler())

	err := d.Validate(testEntities())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "artist-onboarding")
	assert.Contains(t, err.Error(), "partner-followup")
}

func TestDispatcher_ValidatePassesWhenComplete(t *testing.T) {
	d := NewDispatcher()
	for _, capability := range []string{"wellness-welcome", "artist-onboarding", "partner-followup", "general-followup"} {
		d.Register(capability, noopHandler())
	}
	require.NoError(t, d.Validate(testEntities()))
	assert.Len(t, d.Capabilities(), 4)
}
