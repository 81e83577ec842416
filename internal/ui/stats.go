package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/brogergvhs/mangapdf/internal/util"
)

// Stats summarises one pipeline run for the terminal.
type Stats struct {
	Located   int
	Retrieved int
	Failed    int
	Bytes     int64
	Output    string
	Elapsed   time.Duration
}

func (s Stats) Print(w io.Writer) {
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "Download Summary:")
	_, _ = fmt.Fprintf(w, "Located:   %d\n", s.Located)
	_, _ = fmt.Fprintf(w, "Pages:     %d\n", s.Retrieved)
	if s.Failed > 0 {
		_, _ = fmt.Fprintf(w, "Failed:    %d\n", s.Failed)
	}
	_, _ = fmt.Fprintf(w, "Data:      %s\n", util.Human(s.Bytes))
	_, _ = fmt.Fprintf(w, "Time:      %s\n", s.Elapsed.Round(time.Second))
	if s.Output != "" {
		_, _ = fmt.Fprintf(w, "Output:    %s\n", s.Output)
	}
}
