// ABOUTME: Monitor protocol message type definitions
// ABOUTME: JSON messages streamed from a renderer to monitor clients
package protocol

import (
	"encoding/json"
	"fmt"
)

// Version is the monitor protocol version
const Version = 1

// Path is the HTTP path of the monitor websocket
const Path = "/monitor"

// Message types
const (
	TypeServerHello      = "server/hello"
	TypeSessionStart     = "session/start"
	TypeSessionProgress  = "session/progress"
	TypeSessionCompleted = "session/completed"
	TypeSessionFailed    = "session/failed"
)

// Message is the top-level wrapper for all protocol messages
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Envelope is a received message with its payload left encoded
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Decode unmarshals the payload into v
func (e Envelope) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("failed to parse %s payload: %w", e.Type, err)
	}
	return nil
}

// ServerHello is sent to every client on connect
type ServerHello struct {
	ServerID string     `json:"server_id"`
	Name     string     `json:"name"`
	Version  int        `json:"version"`
	Device   DeviceInfo `json:"device_info"`
}

// DeviceInfo contains renderer identification
type DeviceInfo struct {
	ProductName     string `json:"product_name"`
	Manufacturer    string `json:"manufacturer"`
	SoftwareVersion string `json:"software_version"`
}

// SessionStart describes a session when it is attached and to late joiners
type SessionStart struct {
	SessionID   string  `json:"session_id"`
	Source      string  `json:"source"`
	Destination string  `json:"destination"`
	SampleRate  float64 `json:"sample_rate"`
	Channels    int     `json:"channels"`
	TotalFrames int64   `json:"total_frames"` // -1 when unknown
}

// SessionProgress reports frames written so far
type SessionProgress struct {
	SessionID string  `json:"session_id"`
	Progress  float64 `json:"progress"`
	Frames    int64   `json:"frames"`
}

// SessionEnd is the payload of session/completed and session/failed
type SessionEnd struct {
	SessionID string  `json:"session_id"`
	Progress  float64 `json:"progress"`
	Frames    int64   `json:"frames"`
	Error     string  `json:"error,omitempty"`
	Code      int32   `json:"code,omitempty"`
}

// Terminal reports whether the message type ends a session
func Terminal(msgType string) bool {
	return msgType == TypeSessionCompleted || msgType == TypeSessionFailed
}
