package syncer

import "fmt"

// SourceError reports that candidate discovery failed. The run is aborted
// before anything is written.
type SourceError struct {
	Channel string
	Err     error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("syncer: list candidates for %s: %v", e.Channel, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }
