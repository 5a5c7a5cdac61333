package youtube

import (
	"bufio"
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"strings"
)

// json3Doc is YouTube's json3 caption format.
type json3Doc struct {
	Events []struct {
		TStartMs int64 `json:"tStartMs"`
		Segs     []struct {
			UTF8 string `json:"utf8"`
		} `json:"segs"`
	} `json:"events"`
}

// parseJSON3 flattens a json3 track to one line per caption event.
func parseJSON3(data []byte) (string, error) {
	var doc json3Doc
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("parse json3: %w", err)
	}

	lines := make([]string, 0, len(doc.Events))
	for _, ev := range doc.Events {
		if len(ev.Segs) == 0 {
			continue
		}
		var sb strings.Builder
		for _, seg := range ev.Segs {
			sb.WriteString(seg.UTF8)
		}
		lines = appendCaptionLine(lines, sb.String())
	}
	return strings.Join(lines, "\n"), nil
}

var vttTagRegex = regexp.MustCompile(`<[^>]*>`)

// parseVTT flattens a WebVTT track. The header, NOTE/STYLE/REGION blocks,
// cue identifiers, timing lines, inline tags and consecutive duplicate
// lines (rolling auto captions) are dropped.
func parseVTT(data []byte) (string, error) {
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	scanner.Buffer(make([]byte, 64*1024), 1<<20)

	var raw []string
	for scanner.Scan() {
		raw = append(raw, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("parse vtt: %w", err)
	}

	var lines []string
	skipBlock := true // the header runs until the first blank line
	for i, line := range raw {
		switch {
		case line == "":
			skipBlock = false
			continue
		case skipBlock:
			continue
		case strings.HasPrefix(line, "NOTE"),
			strings.HasPrefix(line, "STYLE"),
			strings.HasPrefix(line, "REGION"):
			skipBlock = true
			continue
		case isVTTTiming(line):
			continue
		case i+1 < len(raw) && isVTTTiming(raw[i+1]):
			// Cue identifier.
			continue
		}
		text := vttTagRegex.ReplaceAllString(line, "")
		if n := len(lines); n > 0 && lines[n-1] == strings.TrimSpace(html.UnescapeString(text)) {
			continue
		}
		lines = appendCaptionLine(lines, text)
	}
	return strings.Join(lines, "\n"), nil
}

func isVTTTiming(line string) bool {
	return strings.Contains(line, "-->")
}

// appendCaptionLine unescapes and trims text, splitting embedded newlines.
func appendCaptionLine(lines []string, text string) []string {
	for _, part := range strings.Split(html.UnescapeString(text), "\n") {
		part = strings.TrimSpace(part)
		if part != "" {
			lines = append(lines, part)
		}
	}
	return lines
}
