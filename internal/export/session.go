package export

import (
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"

	"github.com/Faultbox/chimera-importer/internal/progress"
	"github.com/Faultbox/chimera-importer/internal/store"
)

// Session is the state of one export. It is shared by the orchestrator and
// its upload tasks; every method is safe for concurrent use.
type Session struct {
	Target store.Target
	Source string

	progress progress.Tracker
	failed   atomic.Bool
	lod      atomic.Int32

	mu  sync.Mutex
	err error
}

// NewSession starts a session for exporting source into target.
func NewSession(target store.Target, source string) *Session {
	return &Session{Target: target, Source: source}
}

// Success reports whether no stage has failed so far.
func (s *Session) Success() bool {
	return !s.failed.Load()
}

// Fail records err and marks the session failed. Nil errors are ignored.
func (s *Session) Fail(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	s.err = multierr.Append(s.err, err)
	s.mu.Unlock()
	s.failed.Store(true)
}

// Err returns every recorded failure combined, or nil.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Errors returns the recorded failures one by one.
func (s *Session) Errors() []error {
	return multierr.Errors(s.Err())
}

// Progress returns the completion percentage.
func (s *Session) Progress() float64 {
	return s.progress.Value()
}

// Tracker exposes the progress tracker to upload tasks.
func (s *Session) Tracker() *progress.Tracker {
	return &s.progress
}

// Lod returns the LOD being processed.
func (s *Session) Lod() int {
	return int(s.lod.Load())
}

func (s *Session) setLod(lod int) {
	s.lod.Store(int32(lod))
}
