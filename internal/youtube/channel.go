package youtube

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// channelIDRegex matches YouTube channel IDs (UC followed by 22 base64 chars).
var channelIDRegex = regexp.MustCompile(`UC[a-zA-Z0-9_-]{22}`)

// extractChannelID extracts a channel ID from a bare ID or a /channel/ URL.
// Handles (@name) need a network lookup and are rejected.
func extractChannelID(input string) (string, error) {
	if strings.Contains(input, "youtube.com/channel/") {
		rest := strings.SplitN(input, "youtube.com/channel/", 2)[1]
		id := strings.FieldsFunc(rest, func(r rune) bool { return r == '/' || r == '?' })
		if len(id) > 0 && channelIDRegex.MatchString(id[0]) {
			return channelIDRegex.FindString(id[0]), nil
		}
	}
	if !strings.Contains(input, "/") && channelIDRegex.MatchString(input) {
		return channelIDRegex.FindString(input), nil
	}
	return "", fmt.Errorf("%w: cannot extract channel ID from %q (handles require resolution)", ErrInvalidURL, input)
}

// extractHandle returns the @handle of a channel URL or bare handle.
func extractHandle(input string) (string, bool) {
	if strings.HasPrefix(input, "@") {
		return strings.SplitN(input[1:], "/", 2)[0], true
	}
	u, err := url.Parse(input)
	if err != nil {
		return "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) > 0 && strings.HasPrefix(parts[0], "@") && len(parts[0]) > 1 {
		return parts[0][1:], true
	}
	return "", false
}

// normalizeChannelURL points url at the tab for contentType.
func normalizeChannelURL(raw string, contentType ContentType) string {
	tab := contentType.String()

	if channelIDRegex.MatchString(raw) && !strings.Contains(raw, "youtube.com") {
		return "https://www.youtube.com/channel/" + raw + "/" + tab
	}
	if strings.HasPrefix(raw, "@") {
		return "https://www.youtube.com/" + strings.TrimSuffix(raw, "/") + "/" + tab
	}

	raw = strings.TrimSuffix(raw, "/")
	for _, t := range []string{"/videos", "/streams", "/shorts", "/featured"} {
		if strings.HasSuffix(raw, t) {
			return strings.TrimSuffix(raw, t) + "/" + tab
		}
	}
	return raw + "/" + tab
}
