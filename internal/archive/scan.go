package archive

import (
	"errors"
	"io"
	"os"
)

// Scan returns the identifiers present in the archive at path. A missing
// archive yields an empty set.
func Scan(path string) (IDSet, error) {
	return New(path, 0).Scan()
}

// Scan reads the whole archive and extracts every identifier matching
// IDPattern. Entry boundaries, dates and titles are ignored, so damaged
// regions simply contribute no matches.
func (a *Archive) Scan() (IDSet, error) {
	f, err := os.Open(a.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return IDSet{}, nil
		}
		return nil, &AccessError{Op: "scan", Path: a.path, Err: err}
	}
	defer f.Close()

	ids, err := ScanReader(f)
	if err != nil {
		return nil, &AccessError{Op: "scan", Path: a.path, Err: err}
	}
	return ids, nil
}

// ScanReader extracts identifiers from r.
func ScanReader(r io.Reader) (IDSet, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return scanBytes(content), nil
}

func scanBytes(content []byte) IDSet {
	ids := IDSet{}
	for _, m := range IDPattern.FindAllSubmatch(content, -1) {
		ids.Add(string(m[1]))
	}
	return ids
}
