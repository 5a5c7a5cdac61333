package ytarchive

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"ytarchive/internal/archive"
	"ytarchive/internal/config"
	"ytarchive/internal/entry"
	"ytarchive/internal/httpclient"
	"ytarchive/internal/ledger"
	"ytarchive/internal/syncer"
	"ytarchive/internal/youtube"
)

// Runner bundles a configured sync Manager with the resources it holds.
// Close releases the ledger.
type Runner struct {
	Config  *config.Config
	Manager *syncer.Manager
	// Ledger is nil when the ledger is disabled or could not be opened.
	Ledger *ledger.Store
}

type runnerOptions struct {
	logger      *slog.Logger
	dryRun      bool
	candidates  youtube.CandidateSource
	transcripts youtube.TranscriptSource
}

// Option configures NewRunner and Sync.
type Option func(*runnerOptions)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option { return func(o *runnerOptions) { o.logger = l } }

// WithDryRun makes runs report what they would append without writing.
func WithDryRun(dryRun bool) Option { return func(o *runnerOptions) { o.dryRun = dryRun } }

// WithCandidateSource replaces the source selected by cfg.Source.
func WithCandidateSource(s youtube.CandidateSource) Option {
	return func(o *runnerOptions) { o.candidates = s }
}

// WithTranscriptSource replaces the yt-dlp caption fetcher.
func WithTranscriptSource(s youtube.TranscriptSource) Option {
	return func(o *runnerOptions) { o.transcripts = s }
}

// NewRunner wires sources, formatter and ledger from cfg. The ledger is
// optional: if it cannot be opened the runner logs a warning and continues
// without it.
func NewRunner(ctx context.Context, cfg *config.Config, opts ...Option) (*Runner, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("ytarchive: invalid config: %w", err)
	}
	o := runnerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	if o.candidates == nil {
		src, err := NewCandidateSource(ctx, cfg)
		if err != nil {
			return nil, err
		}
		o.candidates = src
	}
	if o.transcripts == nil {
		o.transcripts = NewTranscriptSource(cfg, o.logger)
	}
	formatter, err := entry.New(entry.WithHost(cfg.URLHost), entry.WithSpeakerRules(cfg.Speakers))
	if err != nil {
		return nil, fmt.Errorf("ytarchive: %w", err)
	}

	r := &Runner{Config: cfg}
	options := []syncer.Option{syncer.WithFormatter(formatter), syncer.WithLogger(o.logger)}
	if cfg.LedgerPath != "" {
		store, err := ledger.Open(cfg.LedgerPath)
		if err != nil {
			o.logger.Warn("ytarchive: ledger disabled", "path", cfg.LedgerPath, "error", err)
		} else {
			r.Ledger = store
			options = append(options, syncer.WithLedger(store))
		}
	}

	mo := managerOptions(cfg)
	mo.DryRun = o.dryRun
	r.Manager, err = syncer.New(mo, o.candidates, o.transcripts, options...)
	if err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

// Close releases the ledger, if one is open.
func (r *Runner) Close() error {
	if r.Ledger == nil {
		return nil
	}
	err := r.Ledger.Close()
	r.Ledger = nil
	return err
}

// Sync performs one run with cfg. It is a shortcut for NewRunner followed
// by Manager.Sync and Close.
func Sync(ctx context.Context, cfg *config.Config, opts ...Option) (*syncer.Result, error) {
	r, err := NewRunner(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.Manager.Sync(ctx)
}

// Scan returns the identifiers already present in the archive at path.
// A missing archive holds none.
func Scan(path string) (archive.IDSet, error) {
	return archive.Scan(path)
}

// NewCandidateSource builds the candidate source named by cfg.Source.
func NewCandidateSource(ctx context.Context, cfg *config.Config) (youtube.CandidateSource, error) {
	rc := cfg.RetryConfig()
	switch cfg.Source {
	case config.SourceYtdlp:
		l := youtube.NewYtdlpLister()
		l.Path = cfg.YtdlpPath
		l.Timeout = cfg.YtdlpTimeout.Std()
		l.RetryConfig = &rc
		return l, nil
	case config.SourceRSS:
		l := youtube.NewRSSListerWithClient(&http.Client{Timeout: httpclient.DefaultConfig().Timeout})
		l.RetryConfig = &rc
		return l, nil
	case config.SourceAPI:
		l, err := youtube.NewAPILister(ctx, cfg.APIKey)
		if err != nil {
			return nil, fmt.Errorf("ytarchive: %w", err)
		}
		l.RetryConfig = &rc
		return l, nil
	default:
		return nil, fmt.Errorf("ytarchive: unknown source %q", cfg.Source)
	}
}

// NewTranscriptSource builds the caption fetcher configured by cfg.
func NewTranscriptSource(cfg *config.Config, logger *slog.Logger) youtube.TranscriptSource {
	hc := httpclient.DefaultConfig()
	hc.Retry = cfg.RetryConfig()
	hc.RequestsPerSecond = cfg.RequestsPerSecond

	f := youtube.NewCaptionFetcher(
		youtube.WithHTTPClient(httpclient.New(hc)),
		youtube.WithLogger(logger),
	)
	f.Path = cfg.YtdlpPath
	f.Languages = cfg.Languages
	rc := cfg.RetryConfig()
	f.RetryConfig = &rc
	return f
}

func managerOptions(cfg *config.Config) syncer.Options {
	return syncer.Options{
		Channel:       cfg.ChannelURL,
		ContentType:   cfg.ContentTypeValue(),
		ArchivePath:   cfg.ArchivePath,
		MaxCandidates: cfg.MaxCandidates,
		Concurrency:   cfg.Concurrency,
		UseUploadDate: cfg.DateSource == config.DateSourceUpload,
		LockTimeout:   cfg.LockTimeout.Std(),
		SourceName:    cfg.Source,
	}
}
