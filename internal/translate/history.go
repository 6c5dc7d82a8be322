package translate

import (
	"fmt"
	"sync"
)

// DefaultHistoryLimit is the number of transcript segments sent per request.
const DefaultHistoryLimit = 10

// SystemPrompt returns the instruction sent ahead of the history.
func SystemPrompt(language string) string {
	return fmt.Sprintf("You are a professional translator. Treat the full history as a single text. "+
		"Adjust the punctuation and paragraphs to make the text naturally flowing. "+
		"Translate the full message history to %s. "+
		"Maintain the original meaning and tone as closely as possible. "+
		"Always reply with the full message history translation.", language)
}

// History is the rolling window of transcript segments. Only source text is
// kept; replies are not fed back.
type History struct {
	mu       sync.Mutex
	limit    int
	segments []string
}

// NewHistory returns a window of at most limit segments.
func NewHistory(limit int) *History {
	if limit < 1 {
		limit = DefaultHistoryLimit
	}
	return &History{limit: limit}
}

// Add appends a segment, dropping the oldest beyond the limit, and returns
// the window to send.
func (h *History) Add(text string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.segments = append(h.segments, text)
	if over := len(h.segments) - h.limit; over > 0 {
		h.segments = append([]string(nil), h.segments[over:]...)
	}
	return append([]string(nil), h.segments...)
}

// Settle trims the window after a successful reply so that the next Add
// yields exactly limit segments.
func (h *History) Settle() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if over := len(h.segments) - (h.limit - 1); over > 0 {
		h.segments = append([]string(nil), h.segments[over:]...)
	}
}

// Len returns the number of segments held.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.segments)
}
