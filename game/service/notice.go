package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// NoticeFunc observes error surface changes. A nil notice means the slot was cleared.
type NoticeFunc func(notice *Notice)

// ErrorSurface is a single-slot transient notification channel. Showing a
// message replaces the current one and schedules its dismissal; a dismissal
// only clears the notice it was scheduled for.
type ErrorSurface struct {
	mu       sync.Mutex
	current  *Notice
	timer    *time.Timer
	display  time.Duration
	onChange NoticeFunc
	now      func() time.Time
}

// NewErrorSurface creates an empty surface whose notices last for display
func NewErrorSurface(display time.Duration, onChange NoticeFunc) *ErrorSurface {
	return &ErrorSurface{
		display:  display,
		onChange: onChange,
		now:      time.Now,
	}
}

// Show puts message in the slot and returns a copy of the new notice
func (s *ErrorSurface) Show(message string) *Notice {
	s.mu.Lock()
	shownAt := s.now()
	notice := &Notice{
		ID:        uuid.NewString(),
		Message:   message,
		ShownAt:   shownAt,
		ExpiresAt: shownAt.Add(s.display),
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.current = notice
	id := notice.ID
	s.timer = time.AfterFunc(s.display, func() { s.Dismiss(id) })
	onChange := s.onChange
	s.mu.Unlock()

	out := *notice
	if onChange != nil {
		onChange(&out)
	}
	return &out
}

// Dismiss clears the slot if it still holds the notice with the given id
func (s *ErrorSurface) Dismiss(id string) bool {
	s.mu.Lock()
	if s.current == nil || s.current.ID != id {
		s.mu.Unlock()
		return false
	}
	s.current = nil
	s.timer = nil
	onChange := s.onChange
	s.mu.Unlock()

	if onChange != nil {
		onChange(nil)
	}
	return true
}

// Current returns a copy of the visible notice, or nil
func (s *ErrorSurface) Current() *Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	out := *s.current
	return &out
}

// Close stops any pending dismissal without notifying
func (s *ErrorSurface) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.current = nil
}
