package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyralabs/contact-pipeline/internal/domain"
	apperrors "github.com/nyralabs/contact-pipeline/pkg/util"
)

func TestNormalize_FieldPrecedence(t *testing.T) {
	ev, err := Normalize("contact_form", map[string]string{
		"email":         "primary@example.com",
		"contact_email": "secondary@example.com",
		"your-name":     "Ada",
		"comments":      "hello there",
	})
	require.NoError(t, err)

	assert.Equal(t, "primary@example.com", ev.NormalizedFields[domain.FieldEmail])
	assert.Equal(t, "Ada", ev.NormalizedFields[domain.FieldName])
	assert.Equal(t, "hello there", ev.NormalizedFields[domain.FieldMessage])
	assert.Equal(t, "contact_form", ev.SourceChannel)
	assert.NotEmpty(t, ev.ID)
	assert.False(t, ev.ReceivedAt.IsZero())
}

func TestNormalize_SkipsEmptyCandidates(t *testing.T) {
	ev, err := Normalize("webhook", map[string]string{
		"email":      "   ",
		"your-email": "fallback@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "fallback@example.com", ev.NormalizedFields[domain.FieldEmail])
}

func TestNormalize_Idempotent(t *testing.T) {
	fields := map[string]string{
		"your-email": "a@x.com",
		"phone":      "555-0100",
		"message":    "interested in wellness session",
		"subject":    "Booking",
	}

	first, err := Normalize("contact_form", fields)
	require.NoError(t, err)
	second, err := Normalize("contact_form", fields)
	require.NoError(t, err)

	assert.Equal(t, first.NormalizedFields, second.NormalizedFields)
	assert.NotEqual(t, first.ID, second.ID, "each ingestion is a distinct event")
}

func TestNormalize_RejectsPayloadWithoutContactChannel(t *testing.T) {
	_, err := Normalize("contact_form", map[string]string{
		"name":    "Nobody",
		"message": "no way to reach me",
	})
	require.Error(t, err)

	var domainErr *apperrors.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "MalformedPayloadError", domainErr.Code)
	assert.Equal(t, 400, domainErr.HTTPStatus)
}

func TestNormalize_PhoneOnlyIsAccepted(t *testing.T) {
	ev, err := Normalize("booking", map[string]string{"tel": "555-0101"})
	require.NoError(t, err)
	assert.Equal(t, "555-0101", ev.NormalizedFields[domain.FieldPhone])
	assert.Equal(t, "555-0101", ev.Contact())
}
