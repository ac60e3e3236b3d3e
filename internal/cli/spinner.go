package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Spinner shows activity while a slow upstream call runs. It draws nothing
// unless enabled, so piped output stays clean.
type Spinner struct {
	frames  []string
	current int
	prefix  string
	mu      sync.Mutex
	writer  io.Writer
	enabled bool
	active  bool
	started time.Time
	done    chan struct{}
}

// NewSpinner creates a spinner drawing to w.
func NewSpinner(w io.Writer, prefix string, enabled bool) *Spinner {
	return &Spinner{
		frames:  []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		prefix:  prefix,
		writer:  w,
		enabled: enabled,
		done:    make(chan struct{}),
	}
}

// Start begins drawing.
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.active || !s.enabled {
		s.mu.Unlock()
		return
	}
	s.active = true
	s.started = time.Now()
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.mu.Lock()
				if !s.active {
					s.mu.Unlock()
					return
				}
				s.render()
				s.current = (s.current + 1) % len(s.frames)
				s.mu.Unlock()
			case <-s.done:
				return
			}
		}
	}()
}

// Stop clears the spinner line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.active = false
	close(s.done)
	fmt.Fprint(s.writer, "\r"+strings.Repeat(" ", 80)+"\r")
}

func (s *Spinner) render() {
	fmt.Fprintf(s.writer, "\r%s %s %s", cyan.Sprint(s.frames[s.current]), s.prefix,
		formatDuration(time.Since(s.started)))
}
