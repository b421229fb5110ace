package model

import (
	"math"
	"path/filepath"
	"time"
)

// TimestampLayout is the persisted form of every LogEntry timestamp.
const TimestampLayout = "2006-01-02 15:04:05"

// LogEntry is a persisted log record as returned by reads.
type LogEntry struct {
	ID         int64  `json:"id" xml:"id" yaml:"id"`
	Timestamp  string `json:"timestamp" xml:"timestamp" yaml:"timestamp"`
	Level      string `json:"level" xml:"level" yaml:"level"`
	Message    string `json:"message" xml:"message" yaml:"message"`
	Function   string `json:"func" xml:"func" yaml:"func"`
	File       string `json:"file" xml:"file" yaml:"file"`
	Line       int32  `json:"line" xml:"line" yaml:"line"`
	ThreadID   string `json:"thread_id" xml:"thread_id" yaml:"thread_id"`
	SourceID   int64  `json:"source_id,omitempty" xml:"source_id,omitempty" yaml:"source_id,omitempty"`
	SourceUUID string `json:"source_uuid,omitempty" xml:"source_uuid,omitempty" yaml:"source_uuid,omitempty"`
	SourceName string `json:"source_name,omitempty" xml:"source_name,omitempty" yaml:"source_name,omitempty"`
}

// HasSource reports whether the entry is attributed to a registered source.
func (e LogEntry) HasSource() bool {
	return e.SourceID > 0
}

// LogTask is the unit of work between ingress and persistence.
type LogTask struct {
	Time     time.Time
	Level    LogLevel
	Message  string
	Function string
	File     string
	Line     int
	ThreadID string
}

// Entry converts the task into a row for the given source id (0 for none).
func (t LogTask) Entry(sourceID int64) LogEntry {
	return LogEntry{
		Timestamp: t.Time.Local().Format(TimestampLayout),
		Level:     t.Level.String(),
		Message:   t.Message,
		Function:  t.Function,
		File:      t.File,
		Line:      clampLine(t.Line),
		ThreadID:  t.ThreadID,
		SourceID:  sourceID,
	}
}

// clampLine keeps line numbers inside the INT column: negatives become 0 and
// values past MaxInt32 saturate.
func clampLine(line int) int32 {
	switch {
	case line < 0:
		return 0
	case line > math.MaxInt32:
		return math.MaxInt32
	}
	return int32(line)
}

// StripDir reduces File to its base name.
func (t LogTask) StripDir() LogTask {
	if t.File != "" {
		t.File = filepath.Base(t.File)
	}
	return t
}

func FormatTimestamp(ts time.Time) string {
	return ts.Local().Format(TimestampLayout)
}
