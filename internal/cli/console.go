package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/GriffinCanCode/cliprelay/internal/feed"
)

// clearScreen moves the cursor home and erases the display.
const clearScreen = "\033[H\033[2J"

// Console prints pipeline output for a person watching the terminal.
// Transcripts are appended; each translation replaces the screen, since
// it already covers the whole conversation so far.
type Console struct {
	w            io.Writer
	transcripts  bool
	translations bool
}

// NewConsole creates a console printing the selected kinds to w.
func NewConsole(w io.Writer, transcripts, translations bool) *Console {
	return &Console{w: w, transcripts: transcripts, translations: translations}
}

// Run prints events until ctx is done or events is closed.
func (c *Console) Run(ctx context.Context, events <-chan feed.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			c.print(e)
		}
	}
}

func (c *Console) print(e feed.Event) {
	switch {
	case e.Kind == feed.KindTranscript && c.transcripts:
		fmt.Fprintln(c.w, e.Text)
	case e.Kind == feed.KindTranslation && c.translations:
		fmt.Fprint(c.w, clearScreen)
		fmt.Fprintln(c.w, e.Text)
	}
}
