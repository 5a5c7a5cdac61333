package archive

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Entry is a formatted archive entry and the identifier it records.
type Entry struct {
	ID   string
	Text string
}

// AppendResult reports what Append did while it held the lock.
type AppendResult struct {
	// Written lists the identifiers appended, in batch order.
	Written []string
	// Duplicates lists identifiers dropped because the archive already held
	// them when the lock was taken.
	Duplicates []string
	// Bytes is the number of bytes written.
	Bytes int64
	// IDs is the archive's identifier set as Append left it, and
	// Fingerprint the matching size and mtime. Both are nil/zero when the
	// archive does not exist.
	IDs         IDSet
	Fingerprint Fingerprint
}

// Append writes entries to the end of the archive, creating it if needed.
//
// Under the archive lock the file is rescanned and entries whose ID it
// already holds are dropped, so concurrent runs never write an identifier
// twice. The rest is written as one write of the concatenated entries. If
// the write fails part way the file is truncated back to its previous size
// so no partial entry survives. Append with no entries does not touch the
// file.
func (a *Archive) Append(entries []Entry) (*AppendResult, error) {
	res := &AppendResult{}
	if len(entries) == 0 {
		return res, nil
	}

	if dir := filepath.Dir(a.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &AccessError{Op: "open", Path: a.path, Err: err}
		}
	}

	lock := NewFileLock(a.path)
	if err := lock.Lock(a.lockTimeout); err != nil {
		return nil, &AccessError{Op: "lock", Path: a.path, Err: err}
	}
	defer lock.Unlock()

	content, err := os.ReadFile(a.path)
	exists := err == nil
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, &AccessError{Op: "scan", Path: a.path, Err: err}
	}
	ids := scanBytes(content)

	var buf bytes.Buffer
	for _, e := range entries {
		if ids.Has(e.ID) {
			res.Duplicates = append(res.Duplicates, e.ID)
			continue
		}
		ids.Add(e.ID)
		res.Written = append(res.Written, e.ID)
		buf.WriteString(e.Text)
	}

	if buf.Len() == 0 {
		if exists {
			fp, _, err := a.Fingerprint()
			if err != nil {
				return nil, err
			}
			res.IDs, res.Fingerprint = ids, fp
		}
		return res, nil
	}

	f, err := os.OpenFile(a.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return nil, &AccessError{Op: "open", Path: a.path, Err: err}
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, &AccessError{Op: "open", Path: a.path, Err: err}
	}
	before := info.Size()

	n, werr := f.Write(buf.Bytes())
	if werr == nil {
		werr = f.Sync()
	}
	if werr != nil {
		if n > 0 {
			if terr := f.Truncate(before); terr != nil {
				werr = fmt.Errorf("%w (rollback failed: %v)", werr, terr)
			}
		}
		f.Close()
		return nil, &AccessError{Op: "write", Path: a.path, Err: werr}
	}

	// Stat before the lock is released so the fingerprint describes
	// exactly the content in ids.
	info, err = f.Stat()
	if err != nil {
		f.Close()
		return nil, &AccessError{Op: "stat", Path: a.path, Err: err}
	}
	if err := f.Close(); err != nil {
		return nil, &AccessError{Op: "write", Path: a.path, Err: err}
	}

	res.Bytes = int64(n)
	res.IDs = ids
	res.Fingerprint = Fingerprint{Size: info.Size(), ModTime: info.ModTime().UTC()}
	return res, nil
}
