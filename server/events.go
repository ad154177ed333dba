package server

import (
	"encoding/json"
	"time"
)

// Event names sent on the reload stream.
const (
	EventConnected  = "connected"
	EventReload     = "reload"
	EventBuildError = "build_error"
)

// ConnectedEvent is sent when a client successfully connects.
type ConnectedEvent struct {
	ClientID string `json:"client_id"`
}

// ReloadEvent tells browsers to reload after a successful run.
type ReloadEvent struct {
	RunID    string    `json:"run_id"`
	Tasks    []string  `json:"tasks"`
	Records  int       `json:"records"`
	Finished time.Time `json:"finished"`
}

// BuildErrorEvent reports a failed run without reloading.
type BuildErrorEvent struct {
	RunID  string            `json:"run_id"`
	Errors map[string]string `json:"errors"`
}

func newMessage(event string, payload any) Message {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte("{}")
	}
	return Message{Event: event, Data: data}
}
