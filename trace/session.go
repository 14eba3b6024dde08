// Package trace captures DoIP wire frames exchanged by a conversation to a
// JSON session file, the way a bus logger would, so a run can be replayed or
// fed to traceanalysis after the fact.
package trace

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// Frame is one DoIP frame observed on the wire, in either direction.
type Frame struct {
	Timestamp        time.Time              `json:"timestamp"`
	Direction        string                 `json:"direction"` // "tx" or "rx"
	ConversationName string                 `json:"conversation_name"`
	PayloadType      uint16                 `json:"payload_type"`
	PayloadTypeName  string                 `json:"payload_type_name"`
	Raw              []byte                 `json:"raw"`
	Decoded          map[string]interface{} `json:"decoded,omitempty"`
}

// Session is a complete capture: every frame recorded across every
// conversation while the Recorder was running.
type Session struct {
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Frames    []Frame           `json:"frames"`
	filePath  string
}

// NewSession starts an empty, in-memory session.
func NewSession() *Session {
	return &Session{
		StartTime: time.Now(),
		Metadata:  make(map[string]string),
		Frames:    make([]Frame, 0),
	}
}

// AddFrame appends a captured frame.
func (s *Session) AddFrame(f Frame) {
	s.Frames = append(s.Frames, f)
}

// SetMetadata records a free-form key/value pair in the session header, e.g.
// the config file path or client source address.
func (s *Session) SetMetadata(key, value string) {
	s.Metadata[key] = value
}

// Save writes the session to path (or, if path is empty, to a timestamped
// file under "traces/").
func (s *Session) Save(path string) error {
	if path == "" {
		path = filepath.Join("traces", "session_"+time.Now().Format("20060102_150405")+".json")
	}
	s.filePath = path
	s.EndTime = time.Now()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "trace: create directory")
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Wrap(err, "trace: marshal session")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "trace: write session file")
	}
	return nil
}

// LoadSession reads a previously saved session back from disk.
func LoadSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "trace: read session file")
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(err, "trace: decode session")
	}
	s.filePath = path
	return &s, nil
}
