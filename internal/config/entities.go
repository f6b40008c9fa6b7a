package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nyralabs/contact-pipeline/internal/domain"
)

// LoadEntities returns the business entity definitions. When path is empty
// the built-in defaults are used; otherwise the JSON file replaces them
// entirely. Order matters: classification ties break on file order.
func LoadEntities(path string) ([]domain.BusinessEntityConfig, error) {
	if path == "" {
		return DefaultEntities(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read entity config: %w", err)
	}

	var entities []domain.BusinessEntityConfig
	if err := json.Unmarshal(data, &entities); err != nil {
		return nil, fmt.Errorf("parse entity config: %w", err)
	}
	if len(entities) == 0 {
		return nil, fmt.Errorf("entity config %s defines no entities", path)
	}
	for _, entity := range entities {
		if entity.EntityKey == "" {
			return nil, fmt.Errorf("entity config %s contains an entity without entityKey", path)
		}
	}
	return entities, nil
}

// DefaultEntities describes the three built-in business entities.
func DefaultEntities() []domain.BusinessEntityConfig {
	return []domain.BusinessEntityConfig{
		{
			EntityKey: "the_7_space",
			ClassificationKeywords: []string{
				"wellness", "gallery", "exhibit", "artist", "meditation",
				"healing", "art show", "opening night",
			},
			IntentRules: []domain.IntentRule{
				{Category: domain.IntentWellnessClient, Keywords: []string{"wellness", "session", "healing", "meditation", "massage"}},
				{Category: domain.IntentArtistInquiry, Keywords: []string{"artist", "exhibit", "portfolio", "gallery", "showing"}},
				{Category: domain.IntentEventAttendee, Keywords: []string{"event", "rsvp", "attend", "opening", "ticket"}},
			},
			AgentCapabilityMap: map[domain.IntentCategory]string{
				domain.IntentWellnessClient: "wellness-welcome",
				domain.IntentArtistInquiry:  "artist-onboarding",
				domain.IntentEventAttendee:  "event-confirmation",
				domain.IntentGeneralInquiry: "general-followup",
			},
		},
		{
			EntityKey: "am_consulting",
			ClassificationKeywords: []string{
				"consulting", "consultation", "business", "strategy",
				"partnership", "proposal", "engagement",
			},
			IntentRules: []domain.IntentRule{
				{Category: domain.IntentBusinessPartner, Keywords: []string{"partner", "partnership", "collaborate", "proposal"}},
				{Category: domain.IntentEventAttendee, Keywords: []string{"workshop", "seminar", "webinar"}},
			},
			AgentCapabilityMap: map[domain.IntentCategory]string{
				domain.IntentBusinessPartner: "partner-followup",
				domain.IntentEventAttendee:   "event-confirmation",
				domain.IntentGeneralInquiry:  "general-followup",
			},
		},
		{
			EntityKey: "higherself_core",
			ClassificationKeywords: []string{
				"community", "membership", "newsletter", "platform",
			},
			IntentRules: []domain.IntentRule{
				{Category: domain.IntentEventAttendee, Keywords: []string{"event", "rsvp", "attend"}},
			},
			AgentCapabilityMap: map[domain.IntentCategory]string{
				domain.IntentEventAttendee:  "event-confirmation",
				domain.IntentGeneralInquiry: "general-followup",
			},
		},
	}
}
