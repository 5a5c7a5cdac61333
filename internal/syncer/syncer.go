// Package syncer drives one incremental archive sync: scan the archive,
// pull a bounded number of candidates, fetch transcripts for the unseen
// ones and commit them with a single append.
//
// The archive is written at most once per run, after every fetch has
// settled. Entries are appended oldest first so that the archive reads
// chronologically when the source lists newest first.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"ytarchive/internal/archive"
	"ytarchive/internal/entry"
	"ytarchive/internal/ledger"
	"ytarchive/internal/youtube"
)

// DefaultMaxCandidates is how many candidates a run considers.
const DefaultMaxCandidates = 11

// Options configures a sync run.
type Options struct {
	// Channel is the channel URL, handle or ID handed to the source.
	Channel string
	// ContentType selects the channel tab.
	ContentType youtube.ContentType
	// ArchivePath is the archive file.
	ArchivePath string
	// MaxCandidates bounds how many candidates are pulled from the source.
	// Zero means DefaultMaxCandidates.
	MaxCandidates int
	// Concurrency is the number of transcripts fetched in parallel.
	// Values below 1 mean sequential.
	Concurrency int
	// Date is written into every entry. Zero means the run's start date.
	Date time.Time
	// UseUploadDate prefers the video's upload date over Date when the
	// sources report one.
	UseUploadDate bool
	// DryRun does everything except writing to the archive.
	DryRun bool
	// LockTimeout bounds the wait for the archive lock.
	LockTimeout time.Duration
	// SourceName is recorded in the ledger ("ytdlp", "rss", "api").
	SourceName string
}

// Ledger persists run history and the archive identifier cache.
type Ledger interface {
	CachedIDs(ctx context.Context, archivePath string, fp archive.Fingerprint) (archive.IDSet, bool, error)
	StoreIDs(ctx context.Context, archivePath string, fp archive.Fingerprint, ids archive.IDSet) error
	RecordRun(ctx context.Context, run *ledger.Run) error
}

// Manager runs syncs for one channel and archive.
type Manager struct {
	opts        Options
	archive     *archive.Archive
	candidates  youtube.CandidateSource
	transcripts youtube.TranscriptSource
	formatter   *entry.Formatter
	ledger      Ledger
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithFormatter replaces the default entry formatter.
func WithFormatter(f *entry.Formatter) Option { return func(m *Manager) { m.formatter = f } }

// WithLedger records runs and caches scans in l.
func WithLedger(l Ledger) Option { return func(m *Manager) { m.ledger = l } }

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option { return func(m *Manager) { m.logger = l } }

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

// New creates a Manager.
func New(opts Options, candidates youtube.CandidateSource, transcripts youtube.TranscriptSource, options ...Option) (*Manager, error) {
	if opts.ArchivePath == "" {
		return nil, errors.New("syncer: archive path is required")
	}
	if candidates == nil || transcripts == nil {
		return nil, errors.New("syncer: candidate and transcript sources are required")
	}
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = DefaultMaxCandidates
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}

	m := &Manager{
		opts:        opts,
		archive:     archive.New(opts.ArchivePath, opts.LockTimeout),
		candidates:  candidates,
		transcripts: transcripts,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, o := range options {
		o(m)
	}
	if m.formatter == nil {
		f, err := entry.New()
		if err != nil {
			return nil, err
		}
		m.formatter = f
	}
	return m, nil
}

// staged is a candidate selected for fetching, with its fetch outcome.
type staged struct {
	video      youtube.VideoInfo
	transcript *youtube.Transcript
	err        error
}

// Sync performs one run. Transcript failures are reported in the Result;
// scan, listing and write failures abort the run and are returned. An
// aborted run leaves the archive unchanged.
func (m *Manager) Sync(ctx context.Context) (*Result, error) {
	res := &Result{
		RunID:     ledger.NewRunID(),
		DryRun:    m.opts.DryRun,
		StartedAt: m.now(),
	}
	log := m.logger.With("run_id", res.RunID, "archive", m.archive.Path())
	log.Debug("syncer: run starting", "options", m.opts)

	res, err := m.sync(ctx, res, log)
	res.FinishedAt = m.now()
	m.recordRun(ctx, res, err, log)
	if err != nil {
		return res, err
	}

	log.Info("syncer: run complete",
		"seen", res.Seen, "skipped", res.Skipped, "appended", res.Appended,
		"failed", len(res.Failures), "dry_run", res.DryRun)
	return res, nil
}

func (m *Manager) sync(ctx context.Context, res *Result, log *slog.Logger) (*Result, error) {
	existing, err := m.knownIDs(ctx, log)
	if err != nil {
		return res, err
	}
	log.Debug("syncer: archive scanned", "known", existing.Len())

	videos, err := m.pull(ctx)
	res.Seen = len(videos)
	if err != nil {
		return res, err
	}

	// Select unseen candidates in source order. An identifier is claimed
	// by its first occurrence; later repeats count as skipped.
	claimed := archive.NewIDSet()
	var work []*staged
	for _, v := range videos {
		if existing.Has(v.ID) || claimed.Has(v.ID) {
			res.Skipped++
			continue
		}
		claimed.Add(v.ID)
		work = append(work, &staged{video: v})
	}

	if err := m.fetchAll(ctx, work, log); err != nil {
		return res, err
	}

	runDate := m.opts.Date
	if runDate.IsZero() {
		runDate = res.StartedAt
	}

	var batch []archive.Entry
	for _, s := range work {
		if s.err != nil {
			res.Failures = append(res.Failures, Failure{
				ID:    s.video.ID,
				Title: s.video.Title,
				Kind:  youtube.TranscriptKindOf(s.err),
				Err:   s.err,
			})
			continue
		}
		date := entry.FormatDate(m.entryDate(runDate, s))
		batch = append(batch, archive.Entry{
			ID:   s.video.ID,
			Text: m.formatter.Format(s.video.ID, s.video.Title, date, s.transcript.Text),
		})
	}

	// Newest first from the source; oldest first into the archive.
	slices.Reverse(batch)
	for _, e := range batch {
		res.AppendedIDs = append(res.AppendedIDs, e.ID)
	}
	res.Appended = len(batch)

	if err := ctx.Err(); err != nil {
		return m.abandon(res), err
	}
	if len(batch) == 0 || m.opts.DryRun {
		return res, nil
	}

	ar, err := m.archive.Append(batch)
	if err != nil {
		return m.abandon(res), err
	}
	if len(ar.Duplicates) > 0 {
		log.Info("syncer: entries already written by another run", "ids", ar.Duplicates)
		res.Skipped += len(ar.Duplicates)
	}
	res.AppendedIDs = ar.Written
	res.Appended = len(ar.Written)
	res.BytesWritten = ar.Bytes
	if res.Appended > 0 {
		log.Info("syncer: appended batch", "entries", res.Appended, "bytes", ar.Bytes)
	}

	if ar.IDs != nil {
		m.cacheIDs(ctx, ar.Fingerprint, ar.IDs, log)
	}
	return res, nil
}

// abandon clears what a failed commit would have written.
func (m *Manager) abandon(res *Result) *Result {
	res.Appended = 0
	res.AppendedIDs = nil
	return res
}

// pull reads at most MaxCandidates from the source, stopping early.
func (m *Manager) pull(ctx context.Context) ([]youtube.VideoInfo, error) {
	seq := m.candidates.Candidates(ctx, m.opts.Channel, &youtube.ListOptions{
		MaxResults:  m.opts.MaxCandidates,
		ContentType: m.opts.ContentType,
	})
	videos, err := youtube.Collect(seq, m.opts.MaxCandidates)
	if err != nil {
		return videos, &SourceError{Channel: m.opts.Channel, Err: err}
	}
	return videos, nil
}

// fetchAll fills in each staged transcript. Per-video failures are kept
// in the slot; only cancellation of ctx is returned.
func (m *Manager) fetchAll(ctx context.Context, work []*staged, log *slog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.Concurrency)

	for _, s := range work {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t, err := m.transcripts.Fetch(gctx, s.video.ID)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				log.Warn("syncer: transcript failed",
					"video_id", s.video.ID, "title", s.video.Title,
					"kind", youtube.TranscriptKindOf(err).String(), "error", err)
				s.err = err
				return nil
			}
			if t == nil {
				s.err = &youtube.TranscriptError{VideoID: s.video.ID, Kind: youtube.TranscriptUnavailable,
					Err: errors.New("transcript source returned no transcript")}
				log.Warn("syncer: transcript failed", "video_id", s.video.ID, "title", s.video.Title, "error", s.err)
				return nil
			}
			log.Debug("syncer: transcript fetched",
				"video_id", s.video.ID, "language", t.Language, "auto", t.IsAutoGenerated)
			s.transcript = t
			return nil
		})
	}
	return g.Wait()
}

func (m *Manager) entryDate(runDate time.Time, s *staged) time.Time {
	if !m.opts.UseUploadDate {
		return runDate
	}
	switch {
	case !s.transcript.UploadDate.IsZero():
		return s.transcript.UploadDate
	case !s.video.Published.IsZero():
		return s.video.Published
	}
	return runDate
}

// knownIDs returns the archive's identifier set, from the ledger cache when
// the archive is unchanged since it was recorded.
func (m *Manager) knownIDs(ctx context.Context, log *slog.Logger) (archive.IDSet, error) {
	if m.ledger == nil {
		return m.archive.Scan()
	}

	fp, exists, err := m.archive.Fingerprint()
	if err != nil {
		return nil, err
	}
	if !exists {
		return archive.NewIDSet(), nil
	}

	ids, ok, err := m.ledger.CachedIDs(ctx, m.archive.Path(), fp)
	if err != nil {
		log.Warn("syncer: id cache lookup failed", "error", err)
	}
	if ok {
		log.Debug("syncer: using cached identifiers", "known", ids.Len())
		return ids, nil
	}

	ids, err = m.archive.Scan()
	if err != nil {
		return nil, err
	}
	if err := m.ledger.StoreIDs(ctx, m.archive.Path(), fp, ids); err != nil {
		log.Warn("syncer: id cache store failed", "error", err)
	}
	return ids, nil
}

// cacheIDs stores ids against fp, which must have been taken together with
// ids while the archive was locked.
func (m *Manager) cacheIDs(ctx context.Context, fp archive.Fingerprint, ids archive.IDSet, log *slog.Logger) {
	if m.ledger == nil {
		return
	}
	if err := m.ledger.StoreIDs(ctx, m.archive.Path(), fp, ids); err != nil {
		log.Warn("syncer: id cache store failed", "error", err)
	}
}

func (m *Manager) recordRun(ctx context.Context, res *Result, runErr error, log *slog.Logger) {
	if m.ledger == nil {
		return
	}

	run := &ledger.Run{
		ID:          res.RunID,
		Channel:     m.opts.Channel,
		ArchivePath: m.archive.Path(),
		Source:      m.opts.SourceName,
		StartedAt:   res.StartedAt,
		FinishedAt:  res.FinishedAt,
		Seen:        res.Seen,
		Skipped:     res.Skipped,
		Appended:    res.Appended,
		DryRun:      res.DryRun,
		Status:      ledger.StatusSuccess,
	}
	switch {
	case runErr != nil:
		run.Status = ledger.StatusFailed
		run.Error = runErr.Error()
	case len(res.Failures) > 0:
		run.Status = ledger.StatusPartial
	}
	for _, f := range res.Failures {
		run.Failures = append(run.Failures, ledger.Failure{
			VideoID: f.ID, Title: f.Title, Kind: f.Kind.String(), Reason: f.Reason(),
		})
	}

	// The run's own context may already be cancelled.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := m.ledger.RecordRun(recordCtx, run); err != nil {
		log.Warn("syncer: record run failed", "error", err)
	}
}

// Candidate is a listed video and whether the archive already holds it.
type Candidate struct {
	Video    youtube.VideoInfo
	Archived bool
}

// Preview lists the candidates a run would consider, without fetching
// transcripts or touching the archive.
func (m *Manager) Preview(ctx context.Context) ([]Candidate, error) {
	existing, err := m.archive.Scan()
	if err != nil {
		return nil, err
	}
	videos, err := m.pull(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, len(videos))
	for i, v := range videos {
		out[i] = Candidate{Video: v, Archived: existing.Has(v.ID)}
	}
	return out, nil
}

// String implements fmt.Stringer for logging.
func (o Options) String() string {
	return fmt.Sprintf("channel=%s type=%s archive=%s max=%d concurrency=%d",
		o.Channel, o.ContentType, o.ArchivePath, o.MaxCandidates, o.Concurrency)
}
