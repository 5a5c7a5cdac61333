package entry

import "strings"

// UnknownSpeaker is the label used when no rule matches a title.
const UnknownSpeaker = "Unknown Speaker"

// SpeakerRule maps a title substring to a speaker label.
type SpeakerRule struct {
	// Match is compared case-sensitively against the title.
	Match string `json:"match" yaml:"match"`
	// Label is written to the entry header when Match is found.
	Label string `json:"label" yaml:"label"`
}

// DefaultSpeakerRules returns the built-in rules in priority order.
func DefaultSpeakerRules() []SpeakerRule {
	return []SpeakerRule{
		{Match: "Evans", Label: "Brother Daniel Evans"},
		{Match: "Brisson", Label: "Brother Steeve Brisson"},
		{Match: "Guerra", Label: "Brother Aaron Guerra"},
	}
}

// ResolveSpeaker returns the label of the first rule whose Match occurs in
// title, or UnknownSpeaker. Rules with an empty Match are ignored.
func ResolveSpeaker(rules []SpeakerRule, title string) string {
	for _, r := range rules {
		if r.Match != "" && strings.Contains(title, r.Match) {
			return r.Label
		}
	}
	return UnknownSpeaker
}
