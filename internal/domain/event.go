package domain

import "time"

// IntentCategory enumerates the automation intents a contact event can carry.
type IntentCategory string

const (
	IntentGeneralInquiry  IntentCategory = "generalInquiry"
	IntentArtistInquiry   IntentCategory = "artistInquiry"
	IntentWellnessClient  IntentCategory = "wellnessClient"
	IntentEventAttendee   IntentCategory = "eventAttendee"
	IntentBusinessPartner IntentCategory = "businessPartner"
)

// Canonical keys for NormalizedFields. Subject and interest are kept only
// as classification text and never forwarded to agent payloads.
const (
	FieldName     = "name"
	FieldEmail    = "email"
	FieldPhone    = "phone"
	FieldMessage  = "message"
	FieldSubject  = "subject"
	FieldInterest = "interest"
)

// NormalizedFields maps canonical keys to extracted values.
type NormalizedFields map[string]string

// ContactEvent is the canonical form of an inbound business event.
// ID is assigned at ingestion and never changes. BusinessEntity and
// IntentCategory are written exactly once by the classifier, before the
// event enters the state machine, and are read-only afterward.
type ContactEvent struct {
	ID               string
	ReceivedAt       time.Time
	BusinessEntity   string
	IntentCategory   IntentCategory
	RawPayload       map[string]string
	NormalizedFields NormalizedFields
	SourceChannel    string
	LastSeenAt       time.Time
}

// Contact returns the best available contact address for the event,
// preferring email over phone.
func (e *ContactEvent) Contact() string {
	if email := e.NormalizedFields[FieldEmail]; email != "" {
		return email
	}
	return e.NormalizedFields[FieldPhone]
}
