package model

// LogEntry is one timestamp-anchored group of log lines collapsed to a single line.
type LogEntry struct {
	Timestamp string
	Text      string
}

// RequestGroup is the ordered set of entries that share a request identifier.
type RequestGroup struct {
	RequestID string
	Entries   []LogEntry
}
