package domain

// IntentRule maps an ordered keyword list to an intent category. Rules are
// evaluated in order; the first keyword contained in the classification text
// wins.
type IntentRule struct {
	Category IntentCategory `json:"category"`
	Keywords []string       `json:"keywords"`
}

// BusinessEntityConfig describes one business entity served by the pipeline.
// Loaded at startup and immutable at runtime.
type BusinessEntityConfig struct {
	EntityKey              string                    `json:"entityKey"`
	ClassificationKeywords []string                  `json:"classificationKeywords"`
	IntentRules            []IntentRule              `json:"intentRules"`
	AllowedStates          []State                   `json:"allowedStates"`
	AgentCapabilityMap     map[IntentCategory]string `json:"agentCapabilityMap"`
}

// Allows reports whether the entity permits the given workflow state.
// An empty AllowedStates list permits every state.
func (c BusinessEntityConfig) Allows(s State) bool {
	if len(c.AllowedStates) == 0 {
		return true
	}
	for _, allowed := range c.AllowedStates {
		if allowed == s {
			return true
		}
	}
	return false
}

// CapabilityFor resolves the capability tag configured for an intent.
func (c BusinessEntityConfig) CapabilityFor(intent IntentCategory) (string, bool) {
	capability, ok := c.AgentCapabilityMap[intent]
	return capability, ok
}
