// Package operator drives the stdin control loop from spec.md §4.6-§4.8: one
// line per operator command, dispatched to snapshot/pause/resume, with a
// blank line a no-op and EOF the trigger for orderly shutdown. Grounded on
// original_source/server.c's main operator loop.
package operator

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/leishu-qiu/kvlined/pkg/kvindex"
	"github.com/leishu-qiu/kvlined/pkg/session"
)

// PauseRecorder observes pause/resume transitions for metrics. A nil
// PauseRecorder in Hooks is valid and simply drops the notification.
type PauseRecorder interface {
	SetPaused(paused bool)
}

// Hooks are the actions an operator command triggers. Out receives the
// loop's user-facing feedback (matching stdout in the C original); it is
// never nil in production use but tests may swap in any io.Writer.
type Hooks struct {
	Index *kvindex.Index
	Gate  *session.PauseGate
	Out   io.Writer
	Rec   PauseRecorder
}

// Run reads operator commands from in until EOF, dispatching each to a
// snapshot, pause, or resume. It returns when in is exhausted (EOF), which
// the caller treats as the start of shutdown.
func Run(in io.Reader, h Hooks) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch {
		case fields[0] == "p":
			path := ""
			if len(fields) > 1 {
				path = fields[1]
			}
			if err := snapshot(h.Index, path); err != nil {
				fmt.Fprintf(h.Out, "could not open %s\n", path)
			}

		case strings.HasPrefix(fields[0], "s"):
			fmt.Fprintln(h.Out, "stopping all clients")
			h.Gate.Pause()
			if h.Rec != nil {
				h.Rec.SetPaused(true)
			}

		case strings.HasPrefix(fields[0], "g"):
			fmt.Fprintln(h.Out, "releasing all clients")
			h.Gate.Resume()
			if h.Rec != nil {
				h.Rec.SetPaused(false)
			}
		}
	}
	return scanner.Err()
}

// snapshot writes idx's pre-order dump to os.Stdout when path is empty (not
// through Hooks.Out) or to the named file. Grounded on db.c's db_print: an empty path
// prints to stdout, otherwise it opens the named file for writing.
func snapshot(idx *kvindex.Index, path string) error {
	if path == "" {
		return idx.Snapshot(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return idx.Snapshot(f)
}
