package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"ytarchive/internal/archive"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(MemoryPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesTables(t *testing.T) {
	s := openTestStore(t)
	for _, table := range []string{"runs", "run_failures", "id_cache"} {
		var name string
		err := s.DB.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	// Reopening applies the schema again without error.
	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	s2.Close()
}

func TestRecordRun_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 12, 18, 0, 0, 0, time.UTC)

	older := &Run{
		Channel:     "https://www.youtube.com/@TucsonTabernacle/streams",
		ArchivePath: "All_Sermons_Clean.txt",
		Source:      "ytdlp",
		StartedAt:   base,
		FinishedAt:  base.Add(time.Minute),
		Seen:        11,
		Skipped:     11,
		Status:      StatusSuccess,
	}
	newer := &Run{
		Channel:     older.Channel,
		ArchivePath: older.ArchivePath,
		Source:      "ytdlp",
		StartedAt:   base.Add(time.Hour),
		FinishedAt:  base.Add(time.Hour + time.Minute),
		Seen:        3,
		Skipped:     1,
		Appended:    1,
		Status:      StatusPartial,
		Failures: []Failure{
			{VideoID: "bbbbbbbbbbb", Title: "Wednesday Service", Kind: "disabled", Reason: "no captions"},
		},
	}
	for _, r := range []*Run{older, newer} {
		if err := s.RecordRun(ctx, r); err != nil {
			t.Fatalf("RecordRun() error = %v", err)
		}
		if r.ID == "" {
			t.Fatal("RecordRun() did not assign an ID")
		}
	}

	runs, err := s.Runs(ctx, 10)
	if err != nil {
		t.Fatalf("Runs() error = %v", err)
	}
	want := []Run{*newer, *older}
	if diff := cmp.Diff(want, runs); diff != "" {
		t.Errorf("Runs() mismatch (-want +got):\n%s", diff)
	}

	limited, err := s.Runs(ctx, 1)
	if err != nil {
		t.Fatalf("Runs(1) error = %v", err)
	}
	if len(limited) != 1 || limited[0].ID != newer.ID {
		t.Errorf("Runs(1) = %+v, want only the newest run", limited)
	}
}

func TestIDCache(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "archive.txt")
	fp := archive.Fingerprint{Size: 1024, ModTime: time.Date(2025, 1, 12, 18, 0, 0, 123, time.UTC)}

	if _, ok, err := s.CachedIDs(ctx, path, fp); err != nil || ok {
		t.Fatalf("CachedIDs() on empty cache = ok %v, err %v", ok, err)
	}

	ids := archive.NewIDSet("aaaaaaaaaaa", "bbbbbbbbbbb")
	if err := s.StoreIDs(ctx, path, fp, ids); err != nil {
		t.Fatalf("StoreIDs() error = %v", err)
	}

	got, ok, err := s.CachedIDs(ctx, path, fp)
	if err != nil || !ok {
		t.Fatalf("CachedIDs() = ok %v, err %v; want hit", ok, err)
	}
	if diff := cmp.Diff(ids.Sorted(), got.Sorted()); diff != "" {
		t.Errorf("CachedIDs() mismatch (-want +got):\n%s", diff)
	}

	grown := archive.Fingerprint{Size: 2048, ModTime: fp.ModTime}
	if _, ok, _ := s.CachedIDs(ctx, path, grown); ok {
		t.Error("CachedIDs() hit for a different fingerprint")
	}

	// Overwrite with the new state.
	ids.Add("ccccccccccc")
	if err := s.StoreIDs(ctx, path, grown, ids); err != nil {
		t.Fatalf("StoreIDs() error = %v", err)
	}
	got, ok, _ = s.CachedIDs(ctx, path, grown)
	if !ok || got.Len() != 3 {
		t.Errorf("CachedIDs() after update = %v (ok %v), want 3 ids", got, ok)
	}
}

func TestIDCache_EmptySet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	fp := archive.Fingerprint{Size: 0, ModTime: time.Unix(100, 0).UTC()}

	if err := s.StoreIDs(ctx, "empty.txt", fp, archive.NewIDSet()); err != nil {
		t.Fatalf("StoreIDs() error = %v", err)
	}
	got, ok, err := s.CachedIDs(ctx, "empty.txt", fp)
	if err != nil || !ok || got.Len() != 0 {
		t.Errorf("CachedIDs() = %v, %v, %v; want empty hit", got, ok, err)
	}
}
