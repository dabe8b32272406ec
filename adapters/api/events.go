package api

import (
	"encoding/json"
	"fmt"
)

// SSEEventType defines the types of SSE events for batch runs
type SSEEventType string

const (
	EventTypeBatchStarted   SSEEventType = "batch_started"
	EventTypeBatchProgress  SSEEventType = "batch_progress"
	EventTypeBatchCompleted SSEEventType = "batch_completed"
	EventTypeBatchFailed    SSEEventType = "batch_failed"
)

// SSEEvent represents a server-sent event
type SSEEvent struct {
	EventType SSEEventType `json:"event_type"`
	Data      interface{}  `json:"data"`
}

// ToSSEFormat converts the event to SSE wire format
func (e *SSEEvent) ToSSEFormat() string {
	jsonData, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Sprintf("event: %s\ndata: %s\n\n", e.EventType, `{"error":"error marshalling event"}`)
	}
	return fmt.Sprintf("event: %s\ndata: %s\n\n", e.EventType, string(jsonData))
}

// BatchStartedEvent data for batch start
type BatchStartedEvent struct {
	Mode  string `json:"mode"`
	Tasks int    `json:"tasks"`
}

// BatchProgressEvent data for progress after each task
type BatchProgressEvent struct {
	Completed       int     `json:"completed"`
	Total           int     `json:"total"`
	CurrentTarget   string  `json:"current_target"`
	ProgressPercent float64 `json:"progress_percent"`
}
