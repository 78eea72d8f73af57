package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	EventStage    EventType = "stage"
	EventCommit   EventType = "commit"
	EventQueue    EventType = "queue"
	EventPush     EventType = "push"
	EventPull     EventType = "pull"
	EventConflict EventType = "conflict"
	EventImport   EventType = "import"
	EventError    EventType = "error"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

// levelPriority maps event levels to numeric priorities for comparison
var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// Event represents a single event in the practice and sync pipeline
type Event struct {
	Timestamp    time.Time         `json:"ts"`
	Level        EventLevel        `json:"level"`
	Event        EventType         `json:"event"`
	UserID       string            `json:"user_id,omitempty"`
	PlaylistID   string            `json:"playlist_id,omitempty"`
	TuneID       string            `json:"tune_id,omitempty"`
	Technique    string            `json:"technique,omitempty"`
	Eval         string            `json:"eval,omitempty"`
	IntervalDays int               `json:"interval_days,omitempty"`
	Due          int64             `json:"due,omitempty"`
	QueueDate    string            `json:"queue_date,omitempty"`
	Count        int               `json:"count,omitempty"`
	Seq          int64             `json:"seq,omitempty"`
	Duration     int64             `json:"duration_ms,omitempty"`
	Error        string            `json:"error,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// EventLogger writes events to a JSONL file
type EventLogger struct {
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	minLevel EventLevel
}

// NewEventLogger creates a new event logger with a minimum log level
// minLevel determines which events are written (e.g., LevelInfo skips LevelDebug)
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("events-%s.jsonl", timestamp)
	path := filepath.Join(outputDir, filename)

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		minLevel: minLevel,
	}, nil
}

// Log writes an event to the JSONL file
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.file == nil {
		return nil // Silently ignore if logger not initialized
	}

	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return nil
}

// LogStage logs a staged or cleared evaluation
func (l *EventLogger) LogStage(userID, playlistID, tuneID, eval, technique string) error {
	return l.Log(&Event{
		Level:      LevelDebug,
		Event:      EventStage,
		UserID:     userID,
		PlaylistID: playlistID,
		TuneID:     tuneID,
		Eval:       eval,
		Technique:  technique,
	})
}

// LogCommit logs a committed practice evaluation
func (l *EventLogger) LogCommit(userID, playlistID, tuneID, technique string, intervalDays int, due int64) error {
	return l.Log(&Event{
		Level:        LevelInfo,
		Event:        EventCommit,
		UserID:       userID,
		PlaylistID:   playlistID,
		TuneID:       tuneID,
		Technique:    technique,
		IntervalDays: intervalDays,
		Due:          due,
	})
}

// LogQueue logs a queue generation
func (l *EventLogger) LogQueue(userID, playlistID, queueDate string, count int, forced bool) error {
	return l.Log(&Event{
		Level:      LevelInfo,
		Event:      EventQueue,
		UserID:     userID,
		PlaylistID: playlistID,
		QueueDate:  queueDate,
		Count:      count,
		Extra: map[string]string{
			"forced": fmt.Sprintf("%t", forced),
		},
	})
}

// LogPush logs a completed push batch
func (l *EventLogger) LogPush(acked, rejected int, duration time.Duration, err error) error {
	level := LevelInfo
	errMsg := ""
	if err != nil {
		level = LevelError
		errMsg = err.Error()
	}

	return l.Log(&Event{
		Level:    level,
		Event:    EventPush,
		Count:    acked,
		Duration: duration.Milliseconds(),
		Error:    errMsg,
		Extra: map[string]string{
			"rejected": fmt.Sprintf("%d", rejected),
		},
	})
}

// LogPull logs a completed pull page
func (l *EventLogger) LogPull(applied, skipped int, seq int64, duration time.Duration, err error) error {
	level := LevelInfo
	errMsg := ""
	if err != nil {
		level = LevelError
		errMsg = err.Error()
	}

	return l.Log(&Event{
		Level:    level,
		Event:    EventPull,
		Count:    applied,
		Seq:      seq,
		Duration: duration.Milliseconds(),
		Error:    errMsg,
		Extra: map[string]string{
			"skipped": fmt.Sprintf("%d", skipped),
		},
	})
}

// LogConflict logs a pulled change that lost to newer local state
func (l *EventLogger) LogConflict(table, rowKey string, localVersion, remoteVersion int64) error {
	return l.Log(&Event{
		Level: LevelDebug,
		Event: EventConflict,
		Extra: map[string]string{
			"table":          table,
			"row_key":        rowKey,
			"local_version":  fmt.Sprintf("%d", localVersion),
			"remote_version": fmt.Sprintf("%d", remoteVersion),
		},
	})
}

// LogImport logs an imported tune
func (l *EventLogger) LogImport(tuneID, title, srcPath string) error {
	return l.Log(&Event{
		Level:  LevelInfo,
		Event:  EventImport,
		TuneID: tuneID,
		Extra: map[string]string{
			"title":    title,
			"src_path": srcPath,
		},
	})
}

// LogError logs an error event
func (l *EventLogger) LogError(event EventType, err error) error {
	return l.Log(&Event{
		Level: LevelError,
		Event: event,
		Error: err.Error(),
	})
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}
