package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/nyralabs/contact-pipeline/internal/domain"
)

// Result is what a handler reports back on success.
type Result struct {
	RecordID      string
	Notifications int
}

// Handler is the single contract every agent implements. Concrete handlers
// differ per capability but the state machine only ever sees this interface.
type Handler interface {
	Handle(ctx context.Context, task domain.AgentTask) (Result, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, task domain.AgentTask) (Result, error)

func (f HandlerFunc) Handle(ctx context.Context, task domain.AgentTask) (Result, error) {
	return f(ctx, task)
}

// Dispatcher maps capability tags to handler implementations. The registry
// is populated during startup, validated against the entity configuration,
// and read-only afterward, so lookups need no locking.
type Dispatcher struct {
	handlers map[string]Handler
}

// NewDispatcher creates an empty registry.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

// Register binds a capability tag to a handler. Last registration wins;
// call only during startup.
func (d *Dispatcher) Register(capability string, handler Handler) {
	d.handlers[capability] = handler
}

// Resolve selects the handler for an (entity, intent) pair via the entity's
// capability map. Validate guarantees this cannot miss at dispatch time for
// any configured intent.
func (d *Dispatcher) Resolve(entity domain.BusinessEntityConfig, intent domain.IntentCategory) (Handler, string, error) {
	capability, ok := entity.CapabilityFor(intent)
	if !ok {
		// Unmapped intents fall back to the entity's general capability.
		capability, ok = entity.CapabilityFor(domain.IntentGeneralInquiry)
		if !ok {
			return nil, "", fmt.Errorf("entity %s maps no capability for intent %s", entity.EntityKey, intent)
		}
	}
	handler, ok := d.handlers[capability]
	if !ok {
		return nil, "", fmt.Errorf("capability %s is not registered", capability)
	}
	return handler, capability, nil
}

// Validate checks at startup that every capability referenced by any entity
// has a registered handler. A gap here is a configuration error and must
// stop the process before it accepts traffic.
func (d *Dispatcher) Validate(entities []domain.BusinessEntityConfig) error {
	var missing []string
	seen := make(map[string]bool)
	for _, entity := range entities {
		for intent, capability := range entity.AgentCapabilityMap {
			if _, ok := d.handlers[capability]; !ok && !seen[capability] {
				seen[capability] = true
				missing = append(missing, fmt.Sprintf("%s (entity %s, intent %s)", capability, entity.EntityKey, intent))
			}
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("unregistered capabilities: %v", missing)
	}
	return nil
}

// Capabilities lists registered capability tags, sorted.
func (d *Dispatcher) Capabilities() []string {
	tags := make([]string, 0, len(d.handlers))
	for tag := range d.handlers {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
