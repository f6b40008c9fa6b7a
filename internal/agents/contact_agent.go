// Package agents holds the concrete capability handlers the dispatcher
// selects between. Every agent shares the Handle contract and the same error
// classification rules: collaborator validation rejections are permanent,
// everything else is worth retrying.
package agents

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/nyralabs/contact-pipeline/internal/domain"
	"github.com/nyralabs/contact-pipeline/internal/downstream"
	"github.com/nyralabs/contact-pipeline/internal/pipeline"
)

// ContactAgent upserts the contact into the record store and sends one
// templated follow-up through the notification sink. Each capability is an
// instance of this agent with its own template.
type ContactAgent struct {
	capability  string
	templateKey string
	records     downstream.RecordStore
	sink        downstream.NotificationSink
	logger      *zap.Logger
}

// NewContactAgent builds the agent for one capability tag.
func NewContactAgent(capability, templateKey string, records downstream.RecordStore, sink downstream.NotificationSink, logger *zap.Logger) *ContactAgent {
	return &ContactAgent{
		capability:  capability,
		templateKey: templateKey,
		records:     records,
		sink:        sink,
		logger:      logger.With(zap.String("agent", capability)),
	}
}

// Handle executes the agent's unit of automation for one task.
func (a *ContactAgent) Handle(ctx context.Context, task domain.AgentTask) (pipeline.Result, error) {
	email := task.Payload[domain.FieldEmail]
	phone := task.Payload[domain.FieldPhone]

	recipient := email
	if recipient == "" {
		recipient = phone
	}

	var recordID string
	if email != "" {
		id, err := a.records.Upsert(ctx, downstream.CanonicalRecord{
			Entity:  task.Entity,
			Email:   email,
			Phone:   phone,
			Name:    task.Payload[domain.FieldName],
			Message: task.Payload[domain.FieldMessage],
		})
		if err != nil {
			return pipeline.Result{}, classify(err)
		}
		recordID = id
	}

	templateCtx := map[string]string{
		"name":   task.Payload[domain.FieldName],
		"entity": task.Entity,
	}
	if err := a.sink.Notify(ctx, a.templateKey, recipient, templateCtx); err != nil {
		return pipeline.Result{}, classify(err)
	}

	a.logger.Debug("task handled",
		zap.String("instance_id", task.InstanceID),
		zap.String("record_id", recordID),
		zap.String("recipient", recipient))
	return pipeline.Result{RecordID: recordID, Notifications: 1}, nil
}

// classify maps collaborator failures onto the retry taxonomy before they
// reach the state machine, which never inspects raw error types itself.
func classify(err error) error {
	if errors.Is(err, downstream.ErrInvalidRecord) {
		return pipeline.Permanent(err)
	}
	return pipeline.Transient(err)
}

// capabilityTemplates maps each built-in capability tag to its notification
// template.
var capabilityTemplates = map[string]string{
	"wellness-welcome":   "wellness_welcome_email",
	"artist-onboarding":  "artist_onboarding_email",
	"event-confirmation": "event_confirmation_email",
	"partner-followup":   "partner_followup_email",
	"general-followup":   "general_followup_email",
}

// RegisterDefaults registers a ContactAgent for every built-in capability.
func RegisterDefaults(d *pipeline.Dispatcher, records downstream.RecordStore, sink downstream.NotificationSink, logger *zap.Logger) {
	for capability, template := range capabilityTemplates {
		d.Register(capability, NewContactAgent(capability, template, records, sink, logger))
	}
}
