// Package ytarchive keeps a plain-text transcript archive of a YouTube
// channel up to date.
//
// Overview
//
// Each run scans the archive for the video identifiers it already holds,
// pulls the channel's newest candidates, fetches transcripts for the ones
// not yet archived and appends them in a single write, oldest first. A run
// that finds nothing new leaves the archive untouched.
//
// Quick Start
//
// Sync with the default configuration:
//
//	cfg, err := config.Load("")
//	if err != nil {
//		log.Fatal(err)
//	}
//	res, err := ytarchive.Sync(ctx, cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(res.Summary())
//
// Preview what the next run would consider:
//
//	r, err := ytarchive.NewRunner(ctx, cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer r.Close()
//	candidates, err := r.Manager.Preview(ctx)
//
// Configuration
//
// Settings are layered, lowest priority first:
//
//  1. Default values
//  2. Config file (ytarchive.yaml, ytarchive.yml or ytarchive.json in the
//     working directory, then in the user config directory)
//  3. Environment variables
//
// Commonly used environment variables:
//
//   - YTARCHIVE_CHANNEL_URL: Channel tab, handle or ID to sync
//   - YTARCHIVE_ARCHIVE_PATH: Archive file
//   - YTARCHIVE_SOURCE: Candidate source (ytdlp, rss or api)
//   - YTARCHIVE_API_KEY or YOUTUBE_API_KEY: Data API key for the api source
//   - YTARCHIVE_YTDLP_PATH: Path to yt-dlp executable
//   - YTARCHIVE_LEDGER_PATH: SQLite run ledger; empty disables it
//
// Error Handling
//
// Transcript failures never abort a run; they are listed in the result.
// Scan, listing and write failures do, and leave the archive unchanged:
//
//	var srcErr *ytarchive.SourceError
//	if errors.As(err, &srcErr) {
//		fmt.Printf("listing %s failed: %v\n", srcErr.Channel, srcErr.Err)
//	}
//	if errors.Is(err, ytarchive.ErrLockTimeout) {
//		fmt.Println("another sync holds the archive")
//	}
//
// Dependencies
//
// The ytdlp source and the caption fetcher need yt-dlp installed and
// available in PATH or set via YTARCHIVE_YTDLP_PATH.
//
// Install yt-dlp: https://github.com/yt-dlp/yt-dlp
package ytarchive
