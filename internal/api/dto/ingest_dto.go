package dto

// IngestRequest is the JSON body accepted by POST /events.
type IngestRequest struct {
	SourceChannel string            `json:"sourceChannel"`
	Fields        map[string]string `json:"fields"`
}

// IngestResponse acknowledges an accepted event.
type IngestResponse struct {
	EventID string `json:"eventId"`
	Status  string `json:"status"`
}

// StatusResponse is the read model for GET /status/:eventId.
type StatusResponse struct {
	EventID      string  `json:"eventId"`
	CurrentState string  `json:"currentState"`
	AttemptCount int     `json:"attemptCount"`
	LastError    *string `json:"lastError"`
}
