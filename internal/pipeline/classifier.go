package pipeline

import (
	"strings"

	"github.com/nyralabs/contact-pipeline/internal/domain"
)

// Classifier assigns a business entity and an intent category to a contact
// event from static keyword configuration. Classification is a pure function
// of the event text and the config: identical input always yields the same
// (entity, intent) pair.
type Classifier struct {
	entities      []domain.BusinessEntityConfig
	defaultEntity string
}

// NewClassifier builds a classifier over the configured entities. Entity
// order is significant: the first entity with a keyword match wins.
func NewClassifier(entities []domain.BusinessEntityConfig, defaultEntity string) *Classifier {
	return &Classifier{entities: entities, defaultEntity: defaultEntity}
}

// Classify sets BusinessEntity and IntentCategory on the event, exactly once.
// The second return value is false when no entity keyword matched and the
// default entity was assigned instead (ambiguous classification, resolved
// silently per pipeline contract).
func (c *Classifier) Classify(ev *domain.ContactEvent) (domain.BusinessEntityConfig, bool) {
	text := classificationText(ev.NormalizedFields)

	matched, ok := c.matchEntity(text)
	if !ok {
		matched = c.entityByKey(c.defaultEntity)
	}

	ev.BusinessEntity = matched.EntityKey
	ev.IntentCategory = matchIntent(matched, text)
	return matched, ok
}

// EntityConfig returns the configuration for an entity key.
func (c *Classifier) EntityConfig(key string) (domain.BusinessEntityConfig, bool) {
	for _, entity := range c.entities {
		if entity.EntityKey == key {
			return entity, true
		}
	}
	return domain.BusinessEntityConfig{}, false
}

// Entities returns the configured entities in classification order.
func (c *Classifier) Entities() []domain.BusinessEntityConfig {
	return c.entities
}

func (c *Classifier) matchEntity(text string) (domain.BusinessEntityConfig, bool) {
	for _, entity := range c.entities {
		for _, keyword := range entity.ClassificationKeywords {
			if strings.Contains(text, strings.ToLower(keyword)) {
				return entity, true
			}
		}
	}
	return domain.BusinessEntityConfig{}, false
}

func (c *Classifier) entityByKey(key string) domain.BusinessEntityConfig {
	if entity, ok := c.EntityConfig(key); ok {
		return entity
	}
	// Misconfigured default: fall back to the first configured entity so
	// events are never dropped on the floor.
	return c.entities[0]
}

func matchIntent(entity domain.BusinessEntityConfig, text string) domain.IntentCategory {
	for _, rule := range entity.IntentRules {
		for _, keyword := range rule.Keywords {
			if strings.Contains(text, strings.ToLower(keyword)) {
				return rule.Category
			}
		}
	}
	return domain.IntentGeneralInquiry
}

func classificationText(fields domain.NormalizedFields) string {
	parts := make([]string, 0, 3)
	for _, key := range []string{domain.FieldMessage, domain.FieldSubject, domain.FieldInterest} {
		if val := fields[key]; val != "" {
			parts = append(parts, val)
		}
	}
	return strings.ToLower(strings.Join(parts, " "))
}
