// Package spinner draws a single-line progress indicator on a terminal.
package spinner

import (
	"fmt"
	"io"
	"sync"
)

// frames draw a braille arrow
var frames = []string{
	"⣀⣀ ", "⣄⣀ ", "⣤⣀ ", "⣦⣄ ", "⣶⣤ ", "⣿⣦ ", "⣿⣷ ", "⣿⣿ ",
	"⣿⣿ ", "⣷⣿ ", "⣦⣿ ", "⣤⣷ ", "⣄⣦ ", "⣀⣤ ", "⣀⣄ ", "⣀⣀ ",
}

// Spinner rewrites one terminal line on every Update.
type Spinner struct {
	mu     sync.Mutex
	w      io.Writer
	index  int
	hidden bool
}

// New creates a spinner drawing to w
func New(w io.Writer) *Spinner {
	return &Spinner{w: w}
}

// Update advances to the next frame and prints status after it.
func (s *Spinner) Update(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hidden {
		fmt.Fprint(s.w, "\033[?25l")
		s.hidden = true
	}
	fmt.Fprintf(s.w, "\r%s%s\033[K", frames[s.index], status)

	s.index = (s.index + 1) % len(frames)
}

// Cleanup clears the line and shows the cursor again.
func (s *Spinner) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hidden {
		return
	}
	fmt.Fprint(s.w, "\r\033[K\033[?25h")
	s.hidden = false
}
