// Package commands defines the commands WebSocket clients send to dirfilter.
package commands

import (
	"encoding/json"
	"errors"
)

// CommandType represents the type of command.
type CommandType string

const (
	CommandSetPattern CommandType = "set_pattern"
	CommandGetMatches CommandType = "get_matches"
	CommandGetStatus  CommandType = "get_status"
)

// ErrMissingPayload is returned when a command that needs a payload has none.
var ErrMissingPayload = errors.New("missing payload")

// Command represents a command received from a client.
type Command struct {
	Command   CommandType     `json:"command"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// SetPatternPayload is the payload for set_pattern command.
// An empty pattern matches every file.
type SetPatternPayload struct {
	Pattern string `json:"pattern"`
}

// GetMatchesPayload is the payload for get_matches command.
type GetMatchesPayload struct {
	Limit int `json:"limit,omitempty"` // 0 means the server default
}

// ParseCommand parses a JSON message into a Command.
func ParseCommand(data []byte) (*Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, err
	}
	return &cmd, nil
}

// ParseSetPatternPayload parses the payload for set_pattern command.
func (c *Command) ParseSetPatternPayload() (*SetPatternPayload, error) {
	if len(c.Payload) == 0 {
		return nil, ErrMissingPayload
	}
	var payload SetPatternPayload
	if err := json.Unmarshal(c.Payload, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// ParseGetMatchesPayload parses the payload for get_matches command.
// The payload is optional.
func (c *Command) ParseGetMatchesPayload() (*GetMatchesPayload, error) {
	var payload GetMatchesPayload
	if len(c.Payload) == 0 {
		return &payload, nil
	}
	if err := json.Unmarshal(c.Payload, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}
