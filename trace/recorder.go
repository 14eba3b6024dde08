package trace

import (
	"sync"

	"github.com/pkg/errors"
)

var (
	// ErrAlreadyRecording is returned by Start when the recorder is running.
	ErrAlreadyRecording = errors.New("trace: recorder already running")
	// ErrNotRecording is returned by Stop when the recorder is idle.
	ErrNotRecording = errors.New("trace: recorder not running")
)

// Recorder collects frames from one or more conversations into a single
// Session under a mutex, so TCP channel trace callbacks from different
// conversations' goroutines can all feed the same trace safely.
type Recorder struct {
	mu      sync.Mutex
	session *Session
	running bool
}

// NewRecorder creates an idle recorder.
func NewRecorder() *Recorder {
	return &Recorder{session: NewSession()}
}

// Start begins accepting frames.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return ErrAlreadyRecording
	}
	r.running = true
	return nil
}

// Stop ends the recording and saves the session to path.
func (r *Recorder) Stop(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return ErrNotRecording
	}
	r.running = false
	return r.session.Save(path)
}

// Record appends a frame if the recorder is running; it is a silent no-op
// otherwise, so callers can wire Record unconditionally without checking
// IsRunning on every frame.
func (r *Recorder) Record(f Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	r.session.AddFrame(f)
}

// SetMetadata records session-level metadata.
func (r *Recorder) SetMetadata(key, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.session.SetMetadata(key, value)
}

// IsRunning reports whether the recorder currently accepts frames.
func (r *Recorder) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}
