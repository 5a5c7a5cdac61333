// Package archive reads and extends the append-only transcript archive.
//
// The archive is a single UTF-8 text file. Entries are never rewritten;
// their identity is recovered by scanning for the watch URL embedded in
// each entry header.
package archive

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"time"
)

// Sentinel errors for archive operations.
var (
	// ErrLockTimeout indicates another process holds the archive lock.
	ErrLockTimeout = errors.New("archive: lock acquisition timeout")
)

// DefaultLockTimeout bounds how long Append waits for the archive lock.
const DefaultLockTimeout = 30 * time.Second

// IDPattern matches the video identifier inside an entry's URL line. The
// first submatch is the 11 character identifier.
var IDPattern = regexp.MustCompile(`youtube\.com/watch\?v=([A-Za-z0-9_-]{11})`)

// AccessError reports that the archive could not be read, locked or
// written. It is always fatal for a sync run.
//
//	var accessErr *archive.AccessError
//	if errors.As(err, &accessErr) {
//		fmt.Printf("%s %s: %v\n", accessErr.Op, accessErr.Path, accessErr.Err)
//	}
type AccessError struct {
	// Op is the operation that failed ("scan", "lock", "open", "write", "sync").
	Op string
	// Path is the archive location.
	Path string
	// Err is the underlying error.
	Err error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("archive: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *AccessError) Unwrap() error { return e.Err }

// IDSet is the set of identifiers present in an archive.
type IDSet map[string]struct{}

// NewIDSet returns a set holding ids.
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Has reports whether id is in the set.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id.
func (s IDSet) Add(id string) { s[id] = struct{}{} }

// Len returns the number of identifiers.
func (s IDSet) Len() int { return len(s) }

// Sorted returns the identifiers in lexical order.
func (s IDSet) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Fingerprint identifies a particular state of the archive file. Because the
// archive only grows, a matching size and modification time means the
// identifier set is unchanged.
type Fingerprint struct {
	Size    int64
	ModTime time.Time
}

// Archive is a handle on an archive file. It holds no open descriptors
// between calls.
type Archive struct {
	path        string
	lockTimeout time.Duration
}

// New returns a handle for the archive at path. A non-positive lockTimeout
// selects DefaultLockTimeout.
func New(path string, lockTimeout time.Duration) *Archive {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &Archive{path: path, lockTimeout: lockTimeout}
}

// Path returns the archive location.
func (a *Archive) Path() string { return a.path }

// Fingerprint returns the archive's current size and modification time.
// The zero Fingerprint and ok=false are returned when the file is absent.
func (a *Archive) Fingerprint() (fp Fingerprint, ok bool, err error) {
	info, err := os.Stat(a.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Fingerprint{}, false, nil
		}
		return Fingerprint{}, false, &AccessError{Op: "stat", Path: a.path, Err: err}
	}
	return Fingerprint{Size: info.Size(), ModTime: info.ModTime().UTC()}, true, nil
}
