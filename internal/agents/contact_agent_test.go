package agents

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nyralabs/contact-pipeline/internal/domain"
	"github.com/nyralabs/contact-pipeline/internal/downstream"
	"github.com/nyralabs/contact-pipeline/internal/pipeline"
)

type captureSink struct {
	templates  []string
	recipients []string
	err        error
}

func (s *captureSink) Notify(ctx context.Context, templateKey, recipient string, templateCtx map[string]string) error {
	if s.err != nil {
		return s.err
	}
	s.templates = append(s.templates, templateKey)
	s.recipients = append(s.recipients, recipient)
	return nil
}

type failingRecordStore struct {
	err error
}

func (s *failingRecordStore) Upsert(ctx context.Context, record downstream.CanonicalRecord) (string, error) {
	return "", s.err
}

func wellnessTask() domain.AgentTask {
	return domain.AgentTask{
		InstanceID: "ev-1",
		Entity:     "the_7_space",
		Capability: "wellness-welcome",
		Payload: map[string]string{
			domain.FieldName:    "Ada",
			domain.FieldEmail:   "a@x.com",
			domain.FieldMessage: "interested in wellness session",
		},
	}
}

func TestContactAgent_UpsertsAndNotifies(t *testing.T) {
	records := downstream.NewMemoryRecordStore()
	sink := &captureSink{}
	agent := NewContactAgent("wellness-welcome", "wellness_welcome_email", records, sink, zap.NewNop())

	result, err := agent.Handle(context.Background(), wellnessTask())
	require.NoError(t, err)

	assert.NotEmpty(t, result.RecordID)
	assert.Equal(t, 1, result.Notifications)
	assert.Equal(t, []string{"wellness_welcome_email"}, sink.templates)
	assert.Equal(t, []string{"a@x.com"}, sink.recipients)
	assert.Equal(t, 1, records.Len())
}

func TestContactAgent_PhoneOnlySkipsUpsert(t *testing.T) {
	records := downstream.NewMemoryRecordStore()
	sink := &captureSink{}
	agent := NewContactAgent("general-followup", "general_followup_email", records, sink, zap.NewNop())

	task := wellnessTask()
	delete(task.Payload, domain.FieldEmail)
	task.Payload[domain.FieldPhone] = "555-0100"

	result, err := agent.Handle(context.Background(), task)
	require.NoError(t, err)
	assert.Empty(t, result.RecordID)
	assert.Equal(t, []string{"555-0100"}, sink.recipients)
	assert.Equal(t, 0, records.Len())
}

func TestContactAgent_ClassifiesValidationAsPermanent(t *testing.T) {
	records := &failingRecordStore{err: fmt.Errorf("%w: bad email", downstream.ErrInvalidRecord)}
	agent := NewContactAgent("wellness-welcome", "wellness_welcome_email", records, &captureSink{}, zap.NewNop())

	_, err := agent.Handle(context.Background(), wellnessTask())
	require.Error(t, err)
	assert.True(t, pipeline.IsPermanent(err))
	assert.False(t, pipeline.IsTransient(err))
}

func TestContactAgent_ClassifiesOtherFailuresAsTransient(t *testing.T) {
	records := &failingRecordStore{err: errors.New("connection refused")}
	agent := NewContactAgent("wellness-welcome", "wellness_welcome_email", records, &captureSink{}, zap.NewNop())

	_, err := agent.Handle(context.Background(), wellnessTask())
	require.Error(t, err)
	assert.True(t, pipeline.IsTransient(err))
}

func TestContactAgent_SinkFailureIsClassified(t *testing.T) {
	records := downstream.NewMemoryRecordStore()
	sink := &captureSink{err: errors.New("sink unavailable")}
	agent := NewContactAgent("wellness-welcome", "wellness_welcome_email", records, sink, zap.NewNop())

	_, err := agent.Handle(context.Background(), wellnessTask())
	require.Error(t, err)
	assert.True(t, pipeline.IsTransient(err))
}

func TestRegisterDefaults_SatisfiesDefaultEntityConfig(t *testing.T) {
	d := pipeline.NewDispatcher()
	RegisterDefaults(d, downstream.NewMemoryRecordStore(), &captureSink{}, zap.NewNop())

	assert.ElementsMatch(t, []string{
		"artist-onboarding", "event-confirmation", "general-followup",
		"partner-followup", "wellness-welcome",
	}, d.Capabilities())
}
