package pipeline

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nyralabs/contact-pipeline/internal/domain"
	apperrors "github.com/nyralabs/contact-pipeline/pkg/util"
)

// fieldCandidates lists the inbound field names tried for each canonical key.
// Order is the precedence: the first non-empty candidate wins.
var fieldCandidates = []struct {
	key        string
	candidates []string
}{
	{domain.FieldName, []string{"name", "your-name", "full_name", "first_name"}},
	{domain.FieldEmail, []string{"email", "your-email", "contact_email"}},
	{domain.FieldPhone, []string{"phone", "your-phone", "phone_number", "tel"}},
	{domain.FieldMessage, []string{"message", "your-message", "comments", "body"}},
	{domain.FieldSubject, []string{"subject", "your-subject", "topic"}},
	{domain.FieldInterest, []string{"interest", "service", "inquiry_type"}},
}

// Normalize converts a raw inbound payload into a ContactEvent. Field
// extraction is deterministic: identical fields always yield identical
// normalized values. An event without email and without phone is rejected
// with MalformedPayloadError and never enters the pipeline.
func Normalize(sourceChannel string, fields map[string]string) (*domain.ContactEvent, error) {
	normalized := make(domain.NormalizedFields, len(fieldCandidates))
	for _, fc := range fieldCandidates {
		for _, candidate := range fc.candidates {
			if val := strings.TrimSpace(fields[candidate]); val != "" {
				normalized[fc.key] = val
				break
			}
		}
	}

	if normalized[domain.FieldEmail] == "" && normalized[domain.FieldPhone] == "" {
		return nil, apperrors.NewMalformedPayload("payload must contain at least one contact channel (email or phone)")
	}

	raw := make(map[string]string, len(fields))
	for k, v := range fields {
		raw[k] = v
	}

	now := time.Now().UTC()
	return &domain.ContactEvent{
		ID:               uuid.NewString(),
		ReceivedAt:       now,
		RawPayload:       raw,
		NormalizedFields: normalized,
		SourceChannel:    sourceChannel,
		LastSeenAt:       now,
	}, nil
}
