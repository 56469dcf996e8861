// Package extract turns raw balance-sync logs into merged transaction records.
//
// Two strategies exist for the historical log formats. The segment strategy
// cuts a blob at every "Start syncing the balance" line and merges the objects
// found in each cycle; the request strategy groups timestamped entries by
// Lambda request id and merges the objects of each request. Neither strategy
// writes anything: failures are returned to the caller for recording.
package extract

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Veraticus/balance-sync-recon/internal/model"
	"github.com/Veraticus/balance-sync-recon/internal/pseudojson"
	"github.com/Veraticus/balance-sync-recon/internal/segment"
)

// Strategy selects how a log blob is cut into units of one transaction each.
type Strategy string

// Extraction strategies.
const (
	StrategySegment Strategy = "segment"
	StrategyRequest Strategy = "request"
)

// DefaultSnippetLimit bounds the raw text stored with a failed-parse event.
const DefaultSnippetLimit = 500

var errorMessageRegex = regexp.MustCompile(`ERROR\s+(.*?)\{`)

// ParseStrategy validates a configured strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategySegment, "":
		return StrategySegment, nil
	case StrategyRequest:
		return StrategyRequest, nil
	default:
		return "", fmt.Errorf("unknown extraction strategy %q (want %q or %q)", s, StrategySegment, StrategyRequest)
	}
}

// Options configures an Extractor.
type Options struct {
	Now          func() time.Time
	Segmenter    *segment.Segmenter
	CycleMarker  *regexp.Regexp
	Strategy     Strategy
	SnippetLimit int
}

// Result is everything recovered from one raw log.
type Result struct {
	Records  []model.TransactionRecord
	Failures []model.Failure
}

// Extractor recovers transaction records from raw logs.
type Extractor struct {
	now          func() time.Time
	segmenter    *segment.Segmenter
	cycleMarker  *regexp.Regexp
	strategy     Strategy
	snippetLimit int
}

// New creates an Extractor with defaults for unset options.
func New(opts Options) *Extractor {
	if opts.Strategy == "" {
		opts.Strategy = StrategySegment
	}
	if opts.Segmenter == nil {
		opts.Segmenter = segment.New(segment.Options{})
	}
	if opts.CycleMarker == nil {
		opts.CycleMarker = segment.DefaultCycleMarker
	}
	if opts.SnippetLimit <= 0 {
		opts.SnippetLimit = DefaultSnippetLimit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Extractor{
		now:          opts.Now,
		segmenter:    opts.Segmenter,
		cycleMarker:  opts.CycleMarker,
		strategy:     opts.Strategy,
		snippetLimit: opts.SnippetLimit,
	}
}

// Extract recovers the transaction records of one raw log. A log that yields
// no records produces a no-transactions failure.
func (e *Extractor) Extract(raw model.RawLog) Result {
	var res Result

	for _, unit := range e.units(raw.RawText) {
		merged, failures := e.merge(unit.text, raw.Filename)
		res.Failures = append(res.Failures, failures...)
		if merged == nil {
			continue
		}
		rec := buildRecord(merged, raw.Filename, unit.requestID)
		res.Records = append(res.Records, rec)
	}

	if len(res.Records) == 0 {
		res.Failures = append(res.Failures, model.Failure{
			RecordedAt: e.now().UTC(),
			Kind:       model.FailureNoTransactions,
			Filename:   raw.Filename,
		})
	}
	return res
}

type unit struct {
	requestID string
	text      string
}

func (e *Extractor) units(raw string) []unit {
	if e.strategy == StrategyRequest {
		groups := e.segmenter.Requests(raw)
		units := make([]unit, 0, len(groups))
		for _, g := range groups {
			texts := make([]string, len(g.Entries))
			for i, entry := range g.Entries {
				texts[i] = entry.Text
			}
			units = append(units, unit{requestID: g.RequestID, text: strings.Join(texts, "\n")})
		}
		return units
	}

	if !e.cycleMarker.MatchString(raw) {
		return nil
	}
	segments := segment.Split(raw, e.cycleMarker)
	units := make([]unit, len(segments))
	for i, s := range segments {
		units[i] = unit{text: s}
	}
	return units
}

// merge decodes every object literal in text and folds them into one flat row.
// It returns nil when the unit carries no transaction signal.
func (e *Extractor) merge(text, filename string) (map[string]any, []model.Failure) {
	merged := make(map[string]any)
	var failures []model.Failure

	for _, fragment := range pseudojson.ExtractObjects(text) {
		obj, _, err := pseudojson.Decode(fragment)
		if err != nil {
			failures = append(failures, model.Failure{
				RecordedAt: e.now().UTC(),
				Kind:       model.FailureParse,
				Filename:   filename,
				Snippet:    truncate(fragment, e.snippetLimit),
			})
			continue
		}

		if tx, ok := obj["transaction"].(map[string]any); ok {
			delete(obj, "transaction")
			flatten("transaction", tx, merged)
		}
		for _, key := range slices.Sorted(maps.Keys(obj)) {
			switch v := obj[key].(type) {
			case map[string]any:
				flatten(key, v, merged)
			case []any:
				// lists are never persisted
			default:
				merged[key] = v
			}
		}
	}

	if m := errorMessageRegex.FindStringSubmatch(text); m != nil {
		merged[keyErrorMessage] = strings.TrimSpace(m[1])
	}

	if !hasTransactionSignal(merged) {
		return nil, failures
	}

	if _, ok := merged["subscriptionBalance"]; ok {
		if _, ok := merged["paymentBalance"]; ok {
			merged[keySyncStatus] = string(model.SyncFailed)
			return merged, failures
		}
	}
	merged[keySyncStatus] = string(model.SyncSuccess)
	return merged, failures
}

func hasTransactionSignal(row map[string]any) bool {
	if _, ok := row["userId"]; ok {
		return true
	}
	for k := range row {
		if strings.HasPrefix(k, "transaction_") {
			return true
		}
	}
	return false
}

// flatten copies the scalar leaves of value into dst under prefix_key names.
func flatten(prefix string, value map[string]any, dst map[string]any) {
	for _, k := range slices.Sorted(maps.Keys(value)) {
		key := k
		if prefix != "" {
			key = prefix + "_" + k
		}
		switch v := value[k].(type) {
		case map[string]any:
			flatten(key, v, dst)
		case []any:
			continue
		default:
			dst[key] = v
		}
	}
}

// truncate cuts s to at most limit bytes without splitting a UTF-8 sequence.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
