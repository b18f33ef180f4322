package domain

import "time"

// StepUpEvent is a telemetry event for the step-up flow. Serialized as JSON
// on the Kafka topic and consumed by the Loki forwarder.
type StepUpEvent struct {
	AdminID   string    `json:"adminId"`
	SessionID string    `json:"sessionId,omitempty"`
	EventType string    `json:"eventType"`
	Source    string    `json:"source"`
	State     string    `json:"state,omitempty"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
