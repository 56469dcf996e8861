// Package segment splits raw balance-sync log blobs into timestamp-anchored
// entries, groups them by request and cuts them into sync cycles.
package segment

import (
	"iter"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/Veraticus/balance-sync-recon/internal/model"
)

// RequestIDPolicy controls how request identifiers are recovered from entries.
type RequestIDPolicy string

const (
	// PolicyExplicit only trusts "RequestId:" markers.
	PolicyExplicit RequestIDPolicy = "explicit"
	// PolicyExplicitThenInline falls back to the first UUID-shaped token while
	// no marker has been seen yet.
	PolicyExplicitThenInline RequestIDPolicy = "explicit+inline"
)

// DefaultMarkers are the keyword markers that make an entry relevant to
// reconciliation. Matching is case-insensitive.
var DefaultMarkers = []string{
	"START RequestId:",
	"Begin balance sync",
	"Balances not in sync",
}

// DefaultCycleMarker splits a blob into one segment per balance-sync attempt.
var DefaultCycleMarker = regexp.MustCompile(`INFO\s+Start syncing the balance`)

var (
	timestampAnchor = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}(Z|[+-]\d{2}:?\d{2})?`)
	requestIDMarker = regexp.MustCompile(`RequestId:\s*([0-9A-Za-z-]+)`)
	inlineUUID      = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
)

// Options configures a Segmenter.
type Options struct {
	Policy  RequestIDPolicy
	Markers []string
}

// Segmenter turns raw log text into entries and request groups.
type Segmenter struct {
	policy  RequestIDPolicy
	markers []string
}

// New creates a Segmenter, filling unset options with defaults.
func New(opts Options) *Segmenter {
	if opts.Policy == "" {
		opts.Policy = PolicyExplicitThenInline
	}
	if len(opts.Markers) == 0 {
		opts.Markers = DefaultMarkers
	}
	markers := make([]string, len(opts.Markers))
	for i, m := range opts.Markers {
		markers[i] = strings.ToLower(m)
	}
	return &Segmenter{policy: opts.Policy, markers: markers}
}

// Entries yields the timestamp-anchored entries of raw in order. A line that
// starts with an ISO-8601 millisecond timestamp opens a new entry; any other
// line continues the open one. Lines before the first anchor form their own
// entry with an empty timestamp. The sequence can be ranged over repeatedly.
func Entries(raw string) iter.Seq[model.LogEntry] {
	return func(yield func(model.LogEntry) bool) {
		var (
			open    bool
			stamp   string
			current strings.Builder
		)
		flush := func() bool {
			if !open {
				return true
			}
			text := collapseWhitespace(current.String())
			current.Reset()
			open = false
			if text == "" {
				return true
			}
			return yield(model.LogEntry{Timestamp: stamp, Text: text})
		}

		rest := raw
		for len(rest) > 0 {
			line := rest
			if i := strings.IndexByte(rest, '\n'); i >= 0 {
				line, rest = rest[:i], rest[i+1:]
			} else {
				rest = ""
			}

			if ts := timestampAnchor.FindString(line); ts != "" {
				if !flush() {
					return
				}
				stamp, open = ts, true
			} else if !open {
				stamp, open = "", true
			}
			current.WriteString(line)
			current.WriteByte('\n')
		}
		flush()
	}
}

// Group assigns entries to request groups in order of first sighting. An entry
// with a "RequestId:" marker switches the current request; with the inline
// policy, the first UUID-shaped token is used while no request is current.
// Entries seen before any identifier are dropped.
func (s *Segmenter) Group(entries iter.Seq[model.LogEntry]) []model.RequestGroup {
	var (
		groups  []model.RequestGroup
		index   = make(map[string]int)
		current string
	)
	for entry := range entries {
		if id := explicitRequestID(entry.Text); id != "" {
			current = id
		} else if current == "" && s.policy == PolicyExplicitThenInline {
			current = inlineRequestID(entry.Text)
		}
		if current == "" {
			continue
		}

		i, ok := index[current]
		if !ok {
			i = len(groups)
			index[current] = i
			groups = append(groups, model.RequestGroup{RequestID: current})
		}
		groups[i].Entries = append(groups[i].Entries, entry)
	}
	return groups
}

// Filter keeps only entries that carry one of the configured markers.
func (s *Segmenter) Filter(entries []model.LogEntry) []model.LogEntry {
	var kept []model.LogEntry
	for _, e := range entries {
		lower := strings.ToLower(e.Text)
		for _, m := range s.markers {
			if strings.Contains(lower, m) {
				kept = append(kept, e)
				break
			}
		}
	}
	return kept
}

// Requests runs Entries, Group and Filter over raw and drops groups left empty.
func (s *Segmenter) Requests(raw string) []model.RequestGroup {
	var out []model.RequestGroup
	for _, g := range s.Group(Entries(raw)) {
		g.Entries = s.Filter(g.Entries)
		if len(g.Entries) > 0 {
			out = append(out, g)
		}
	}
	return out
}

// Split cuts raw into sync-cycle segments at every match of marker, dropping
// blank segments. A nil marker uses DefaultCycleMarker.
func Split(raw string, marker *regexp.Regexp) []string {
	if marker == nil {
		marker = DefaultCycleMarker
	}
	var segments []string
	for _, part := range marker.Split(raw, -1) {
		if strings.TrimSpace(part) != "" {
			segments = append(segments, part)
		}
	}
	return segments
}

func explicitRequestID(text string) string {
	m := requestIDMarker.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

func inlineRequestID(text string) string {
	for _, candidate := range inlineUUID.FindAllString(text, -1) {
		if id, err := uuid.Parse(candidate); err == nil {
			return id.String()
		}
	}
	return ""
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
