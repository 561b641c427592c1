package standard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cdr.dev/slog/v3"
)

// LogEntry is a single retained log line.
type LogEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Logger    string                 `json:"logger,omitempty"`
	Message   string                 `json:"message"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

// RecentLogs is a slog.Sink that keeps the last N entries in memory, so a
// host can show why a report went missing without shipping logs anywhere.
type RecentLogs struct {
	mu         sync.Mutex
	entries    []LogEntry
	maxEntries int
}

var _ slog.Sink = (*RecentLogs)(nil)

// NewRecentLogs creates a ring buffer of maxEntries (100 when <= 0).
func NewRecentLogs(maxEntries int) *RecentLogs {
	if maxEntries <= 0 {
		maxEntries = 100
	}
	return &RecentLogs{
		entries:    make([]LogEntry, 0, maxEntries),
		maxEntries: maxEntries,
	}
}

// LogEntry implements slog.Sink.
func (r *RecentLogs) LogEntry(_ context.Context, e slog.SinkEntry) {
	entry := LogEntry{
		Timestamp: e.Time.UTC(),
		Level:     e.Level.String(),
		Message:   e.Message,
	}
	if len(e.LoggerNames) > 0 {
		entry.Logger = e.LoggerNames[len(e.LoggerNames)-1]
	}
	if len(e.Fields) > 0 {
		entry.Context = make(map[string]interface{}, len(e.Fields))
		for _, f := range e.Fields {
			entry.Context[f.Name] = fieldValue(f.Value)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, entry)
	if len(r.entries) > r.maxEntries {
		r.entries = r.entries[len(r.entries)-r.maxEntries:]
	}
}

// Sync implements slog.Sink. Entries are kept in memory only.
func (*RecentLogs) Sync() {}

func fieldValue(v interface{}) interface{} {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return v
}

// Entries returns a copy of the retained entries, oldest first.
func (r *RecentLogs) Entries() []LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]LogEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Count returns how many retained entries have the given level ("WARN", ...).
func (r *RecentLogs) Count(level string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, e := range r.entries {
		if e.Level == level {
			n++
		}
	}
	return n
}

// GetData returns the entries with per-level stats.
func (r *RecentLogs) GetData() interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errorCount, warnCount, infoCount, debugCount int
	for _, entry := range r.entries {
		switch entry.Level {
		case slog.LevelError.String(), slog.LevelCritical.String(), slog.LevelFatal.String():
			errorCount++
		case slog.LevelWarn.String():
			warnCount++
		case slog.LevelInfo.String():
			infoCount++
		case slog.LevelDebug.String():
			debugCount++
		}
	}

	entries := make([]LogEntry, len(r.entries))
	copy(entries, r.entries)

	return map[string]interface{}{
		"entries": entries,
		"stats": map[string]interface{}{
			"total_count":    len(entries),
			"errors_count":   errorCount,
			"warnings_count": warnCount,
			"info_count":     infoCount,
			"debug_count":    debugCount,
			"max_entries":    r.maxEntries,
		},
	}
}
