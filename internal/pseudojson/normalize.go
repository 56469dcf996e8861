package pseudojson

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidJSON is returned when a fragment is still not strict JSON after repair.
var ErrInvalidJSON = errors.New("invalid JSON after normalization")

var (
	bareKeyRegex = regexp.MustCompile(`(\b\w+\b)\s*:`)
	// The bare-key pass also quotes the hour and minute of unquoted-colon
	// timestamps, which splits them apart; this stitches them back together.
	brokenDateRegex = regexp.MustCompile(`"(\d{4}-\d{2})-"(\d{2})T(\d{2})":"(\d{2})":(\d{2}\.\d+Z)"`)
	notesKeyRegex   = regexp.MustCompile(`"notes"\s*:\s*"`)
	// A notes value ends at the quote that is followed by the next key or
	// by the end of the object.
	notesEndRegex = regexp.MustCompile(`"\s*(?:,\s*"[\w.-]+"\s*:|\})`)
)

// Normalize repairs a loosely formed object literal into strict JSON.
//
// Text that is already valid JSON is returned unchanged. Otherwise bare keys
// are quoted, unescaped single quotes become double quotes, split ISO
// timestamps are re-joined and quotes inside "notes" values are escaped. The
// repaired text is returned together with ErrInvalidJSON when it still does
// not validate, so callers can fall back to ScanFlat.
func Normalize(text string) (string, error) {
	if json.Valid([]byte(text)) {
		return text, nil
	}

	text = bareKeyRegex.ReplaceAllString(text, `"$1":`)
	text = replaceUnescapedSingleQuotes(text)
	text = brokenDateRegex.ReplaceAllString(text, `"$1-$2T$3:$4:$5"`)
	text = escapeNotes(text)

	if !json.Valid([]byte(text)) {
		return text, ErrInvalidJSON
	}
	return text, nil
}

// replaceUnescapedSingleQuotes swaps every ' not preceded by a backslash for ".
func replaceUnescapedSingleQuotes(text string) string {
	if !strings.Contains(text, "'") {
		return text
	}
	b := []byte(text)
	for i, c := range b {
		if c == '\'' && (i == 0 || b[i-1] != '\\') {
			b[i] = '"'
		}
	}
	return string(b)
}

// escapeNotes escapes the bare double quotes inside every "notes" string value.
func escapeNotes(text string) string {
	var b strings.Builder
	rest := text
	for {
		loc := notesKeyRegex.FindStringIndex(rest)
		if loc == nil {
			break
		}
		b.WriteString(rest[:loc[1]])
		rest = rest[loc[1]:]

		end := notesEndRegex.FindStringIndex(rest)
		if end == nil {
			break
		}
		b.WriteString(escapeBareQuotes(rest[:end[0]]))
		rest = rest[end[0]:]
	}
	b.WriteString(rest)
	return b.String()
}

func escapeBareQuotes(value string) string {
	if !strings.Contains(value, `"`) {
		return value
	}
	var b strings.Builder
	for i := 0; i < len(value); i++ {
		if value[i] == '"' && (i == 0 || value[i-1] != '\\') {
			b.WriteByte('\\')
		}
		b.WriteByte(value[i])
	}
	return b.String()
}
