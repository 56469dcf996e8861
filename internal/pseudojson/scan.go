package pseudojson

import (
	"regexp"
	"strings"
)

var pythonLiteralRegex = regexp.MustCompile(`\b(None|True|False)\b`)

var pythonLiterals = map[string]string{
	"None":  "null",
	"True":  "true",
	"False": "false",
}

var quoteReplacer = strings.NewReplacer(
	"'", `"`,
	"‘", `"`,
	"’", `"`,
	"“", `"`,
	"”", `"`,
)

// ExtractObjects returns every top-level brace-balanced {...} span in text, in
// order of appearance. Depth counting keeps nested objects inside their parent.
func ExtractObjects(text string) []string {
	var (
		objects []string
		current strings.Builder
		depth   int
	)
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == '{' {
			depth++
		}
		if depth > 0 {
			current.WriteByte(c)
		}
		if c == '}' && depth > 0 {
			depth--
			if depth == 0 {
				objects = append(objects, current.String())
				current.Reset()
			}
		}
	}
	return objects
}

// ScanFlat recovers the top-level key/value pairs of an object literal by
// scanning for colons, without requiring the text to parse.
//
// A colon whose value starts with '{' introduces a nested object: the colon is
// skipped and the whole balanced span is excluded from scanning, so nested keys
// never reach the flat result. Colons inside quoted strings are ignored.
// Values are returned as trimmed strings; "null" values are omitted.
func ScanFlat(text string) map[string]string {
	text = pythonLiteralRegex.ReplaceAllStringFunc(text, func(m string) string {
		return pythonLiterals[m]
	})
	text = quoteReplacer.Replace(text)

	inString := quotedMask(text)
	excluded := make([]bool, len(text))
	result := make(map[string]string)

	for i := 0; i < len(text); i++ {
		if text[i] != ':' || inString[i] || excluded[i] {
			continue
		}
		valueStart := skipSpaceForward(text, i+1)
		if valueStart < len(text) && text[valueStart] == '{' {
			end := matchBrace(text, valueStart)
			for j := valueStart; j <= end && j < len(text); j++ {
				excluded[j] = true
			}
			continue
		}

		key := scanKey(text, i, inString)
		if key == "" {
			continue
		}
		value := scanValue(text, i+1, inString)
		if value == "null" {
			continue
		}
		result[key] = value
	}
	return result
}

// quotedMask marks the byte positions that fall inside a double-quoted string.
func quotedMask(text string) []bool {
	mask := make([]bool, len(text))
	in := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == '"' && (i == 0 || text[i-1] != '\\') {
			in = !in
			continue
		}
		mask[i] = in
	}
	return mask
}

func scanKey(text string, colon int, inString []bool) string {
	start := colon - 1
	for start >= 0 {
		c := text[start]
		if !inString[start] && (c == '{' || c == '}' || c == ',') {
			break
		}
		start--
	}
	return trimToken(text[start+1 : colon])
}

func scanValue(text string, from int, inString []bool) string {
	end := from
	for end < len(text) {
		c := text[end]
		if !inString[end] && (c == ',' || c == '}') {
			break
		}
		end++
	}
	return trimToken(text[from:end])
}

func trimToken(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"`)
}

func skipSpaceForward(text string, i int) int {
	for i < len(text) && (text[i] == ' ' || text[i] == '\t' || text[i] == '\n' || text[i] == '\r') {
		i++
	}
	return i
}

// matchBrace returns the index of the brace closing the one at open, or the
// last index of text when the span is unbalanced.
func matchBrace(text string, open int) int {
	depth := 0
	for i := open; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return len(text) - 1
}
