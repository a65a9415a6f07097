package spinner

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpinnerCyclesFrames(t *testing.T) {
	var buf bytes.Buffer
	s := New(&buf)

	for range len(frames) + 1 {
		s.Update("50%")
	}
	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "\033[?25l"), "cursor hidden once")
	assert.Equal(t, len(frames)+1, strings.Count(out, "\r"), "one line rewrite per update")
	assert.Equal(t, 1, s.index, "index wraps after a full cycle")
}

func TestSpinnerCleanup(t *testing.T) {
	var buf bytes.Buffer
	s := New(&buf)

	s.Cleanup()
	assert.Empty(t, buf.String(), "nothing drawn, nothing to clear")

	s.Update("x")
	s.Cleanup()
	assert.True(t, strings.HasSuffix(buf.String(), "\033[?25h"))
}
