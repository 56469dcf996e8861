package segment

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/balance-sync-recon/internal/model"
)

const (
	reqA = "2d79cb3e-8a76-4a7e-be51-1af6e51c3f65"
	reqB = "9f2c1e44-0b7d-4a51-a8c3-5d1e2f3a4b6c"
)

func TestEntries_ContinuationLines(t *testing.T) {
	raw := "2023-12-12T11:28:13.312Z INFO first line\n" +
		"\tat stack.frame(File.js:10)\n" +
		"2023-12-12T11:28:13.400Z INFO second line\n"

	entries := slices.Collect(Entries(raw))

	require.Len(t, entries, 2)
	assert.Equal(t, "2023-12-12T11:28:13.312Z", entries[0].Timestamp)
	assert.Equal(t, "2023-12-12T11:28:13.312Z INFO first line at stack.frame(File.js:10)", entries[0].Text)
	assert.Equal(t, "2023-12-12T11:28:13.400Z INFO second line", entries[1].Text)
}

func TestEntries_Restartable(t *testing.T) {
	raw := "2023-12-12T11:28:13.312Z a\n2023-12-12T11:28:14.312Z b\n   c  \n"
	seq := Entries(raw)

	first := slices.Collect(seq)
	second := slices.Collect(seq)

	assert.Equal(t, first, second)
	assert.Len(t, first, 2)
}

func TestEntries_PreambleWithoutAnchor(t *testing.T) {
	entries := slices.Collect(Entries("header line\n2023-12-12T11:28:13.312Z body\n"))

	require.Len(t, entries, 2)
	assert.Empty(t, entries[0].Timestamp)
	assert.Equal(t, "header line", entries[0].Text)
}

func TestEntries_EarlyBreak(t *testing.T) {
	raw := "2023-12-12T11:28:13.312Z a\n2023-12-12T11:28:14.312Z b\n2023-12-12T11:28:15.312Z c\n"
	count := 0
	for range Entries(raw) {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestSegmenter_Group(t *testing.T) {
	raw := "2023-12-12T11:28:13.000Z orphan entry\n" +
		"2023-12-12T11:28:13.100Z START RequestId: " + reqA + " Version: $LATEST\n" +
		"2023-12-12T11:28:13.200Z " + reqA + " INFO Begin balance sync {userId: 'u1'}\n" +
		"2023-12-12T11:28:14.100Z START RequestId: " + reqB + " Version: $LATEST\n" +
		"2023-12-12T11:28:14.200Z " + reqB + " INFO Balances not in sync {userId: 'u2'}\n"

	groups := New(Options{}).Group(Entries(raw))

	require.Len(t, groups, 2)
	assert.Equal(t, reqA, groups[0].RequestID)
	assert.Len(t, groups[0].Entries, 2)
	assert.Equal(t, reqB, groups[1].RequestID)
	assert.Len(t, groups[1].Entries, 2)
}

func TestSegmenter_GroupPolicies(t *testing.T) {
	raw := "2023-12-12T11:28:13.200Z " + reqA + " INFO Begin balance sync\n" +
		"2023-12-12T11:28:13.300Z " + reqA + " INFO Balances not in sync\n"

	tests := []struct {
		name       string
		policy     RequestIDPolicy
		wantGroups int
	}{
		{name: "inline fallback recovers the id", policy: PolicyExplicitThenInline, wantGroups: 1},
		{name: "explicit only drops unmarked entries", policy: PolicyExplicit, wantGroups: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups := New(Options{Policy: tt.policy}).Group(Entries(raw))
			assert.Len(t, groups, tt.wantGroups)
		})
	}
}

func TestSegmenter_Filter(t *testing.T) {
	s := New(Options{})
	entries := []model.LogEntry{
		{Text: "START RequestId: abc"},
		{Text: "INFO BEGIN BALANCE SYNC {...}"},
		{Text: "INFO unrelated noise"},
		{Text: "WARN balances not in sync"},
	}

	kept := s.Filter(entries)

	require.Len(t, kept, 3)
	assert.Equal(t, "INFO BEGIN BALANCE SYNC {...}", kept[1].Text)
}

func TestSegmenter_RequestsWithoutIdentifier(t *testing.T) {
	raw := "2023-12-12T11:28:13.200Z INFO Begin balance sync {userId: 'u1'}\n"
	assert.Empty(t, New(Options{}).Requests(raw))
}

func TestSplit(t *testing.T) {
	raw := "preamble\n" +
		"2023-12-12T11:28:13.200Z INFO Start syncing the balance {a: 1}\n" +
		"2023-12-12T11:28:13.300Z INFO  Start syncing the balance {b: 2}\n"

	segments := Split(raw, nil)

	require.Len(t, segments, 3)
	assert.Contains(t, segments[1], "{a: 1}")
	assert.Contains(t, segments[2], "{b: 2}")
}
