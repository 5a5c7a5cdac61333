package syncer

import (
	"fmt"
	"strings"
	"time"

	"ytarchive/internal/youtube"
)

// Result summarizes one sync run.
type Result struct {
	// RunID identifies the run in the ledger.
	RunID string

	// Seen is the number of candidates pulled from the source.
	Seen int
	// Skipped counts candidates already archived or repeated in the listing.
	Skipped int
	// Appended is the number of entries written (or, for a dry run, that
	// would have been written).
	Appended int

	// AppendedIDs lists the new identifiers in archive order, oldest first.
	AppendedIDs []string

	// Failures are the candidates whose transcripts could not be retrieved,
	// in source order.
	Failures []Failure

	// BytesWritten is the size of the appended batch.
	BytesWritten int64

	DryRun     bool
	StartedAt  time.Time
	FinishedAt time.Time
}

// Failure records a candidate that was not archived this run.
type Failure struct {
	ID    string
	Title string
	Kind  youtube.TranscriptKind
	Err   error
}

// Reason returns the failure cause as text.
func (f Failure) Reason() string {
	if f.Err == nil {
		return f.Kind.String()
	}
	return f.Err.Error()
}

// Summary renders the result for people.
func (r *Result) Summary() string {
	var b strings.Builder

	verb := "Appended"
	if r.DryRun {
		verb = "Would append"
	}
	switch {
	case r.Appended > 0:
		fmt.Fprintf(&b, "%s %d new %s", verb, r.Appended, plural(r.Appended, "entry", "entries"))
	case len(r.Failures) > 0:
		b.WriteString("No new entries")
	default:
		b.WriteString("Archive is up to date")
	}
	fmt.Fprintf(&b, " (%d %s seen, %d already archived",
		r.Seen, plural(r.Seen, "candidate", "candidates"), r.Skipped)
	if n := len(r.Failures); n > 0 {
		fmt.Fprintf(&b, ", %d failed", n)
	}
	b.WriteString(")")

	for _, id := range r.AppendedIDs {
		fmt.Fprintf(&b, "\n  + %s", id)
	}
	for _, f := range r.Failures {
		fmt.Fprintf(&b, "\n  ! %s %q: %s", f.ID, f.Title, f.Reason())
	}
	return b.String()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
