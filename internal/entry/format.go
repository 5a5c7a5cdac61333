// Package entry renders archive entries.
//
// An entry is a fixed-schema text block: a banner naming the file, a
// details section with date, title, speaker and watch URL, then the
// transcript body. The URL line is what the archive scanner keys on, so
// every rendered entry can be found again by scanning.
package entry

import (
	"fmt"
	"strings"
	"time"
)

// DefaultHost is the host used in the URL line.
const DefaultHost = "www.youtube.com"

// DateLayout is the layout of the Date header field.
const DateLayout = "2006-01-02"

var (
	banner = strings.Repeat("#", 80)
	rule   = strings.Repeat("=", 40)
)

// Formatter renders entries. The zero value uses DefaultHost and
// DefaultSpeakerRules.
type Formatter struct {
	host  string
	rules []SpeakerRule
}

// Option configures a Formatter.
type Option func(*Formatter)

// WithHost sets the URL host. It must end in "youtube.com" so that the
// archive scanner recognises the URL.
func WithHost(host string) Option { return func(f *Formatter) { f.host = host } }

// WithSpeakerRules replaces the speaker rules. A nil slice keeps the defaults.
func WithSpeakerRules(rules []SpeakerRule) Option {
	return func(f *Formatter) {
		if rules != nil {
			f.rules = rules
		}
	}
}

// New returns a Formatter configured by opts.
func New(opts ...Option) (*Formatter, error) {
	f := &Formatter{host: DefaultHost, rules: DefaultSpeakerRules()}
	for _, opt := range opts {
		opt(f)
	}
	if f.host == "" {
		f.host = DefaultHost
	}
	if !strings.HasSuffix(f.host, "youtube.com") || strings.ContainsAny(f.host, "/?") {
		return nil, fmt.Errorf("entry: host %q would not be recognised by the archive scanner", f.host)
	}
	return f, nil
}

// Speaker resolves the speaker label for title.
func (f *Formatter) Speaker(title string) string {
	rules := f.rules
	if rules == nil {
		rules = DefaultSpeakerRules()
	}
	return ResolveSpeaker(rules, title)
}

// URL returns the watch URL embedded for id.
func (f *Formatter) URL(id string) string {
	host := f.host
	if host == "" {
		host = DefaultHost
	}
	return "https://" + host + "/watch?v=" + id
}

// Format renders one entry. It is deterministic and accepts empty fields,
// which are written as-is.
func (f *Formatter) Format(id, title, date, transcript string) string {
	speaker := f.Speaker(title)

	var b strings.Builder
	b.Grow(len(transcript) + len(title)*2 + 512)

	b.WriteString("\n")
	b.WriteString(banner + "\n")
	fmt.Fprintf(&b, "START OF FILE: %s - %s - %s - Clean.txt\n", date, title, speaker)
	b.WriteString(banner + "\n")
	b.WriteString("\n")
	b.WriteString("SERMON DETAILS\n")
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "Date:    %s\n", date)
	fmt.Fprintf(&b, "Title:   %s\n", title)
	fmt.Fprintf(&b, "Speaker: %s\n", speaker)
	fmt.Fprintf(&b, "URL:     %s\n", f.URL(id))
	b.WriteString(rule + "\n")
	b.WriteString("\n")
	b.WriteString(transcript)
	b.WriteString("\n")

	return b.String()
}

// FormatDate renders t in the Date header layout.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
