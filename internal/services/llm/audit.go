package llm

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finsight/internal/models"
)

// AuditLog represents one narrative generation request
type AuditLog struct {
	ID        int64            `json:"id"`
	RequestID string           `json:"request_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Provider  string           `json:"provider"`
	Entity    string           `json:"entity"`
	Status    string           `json:"status"`
	ErrorKind models.ErrorKind `json:"error_kind,omitempty"`
	Error     string           `json:"error,omitempty"`
	Attempts  int              `json:"attempts"`
	Duration  int64            `json:"duration_ms"`
}

// AuditLogger records generation requests
type AuditLogger interface {
	LogGeneration(entry AuditLog) error
	GetLogs(limit int) ([]AuditLog, error)
	ExportToJSON(w io.Writer) error
}

// MemoryAuditLogger keeps the most recent entries in a fixed-size ring.
// Entries do not survive a restart.
type MemoryAuditLogger struct {
	mu       sync.Mutex
	entries  []AuditLog
	next     int
	full     bool
	sequence int64
	logger   arbor.ILogger
}

// NewMemoryAuditLogger creates an audit logger holding up to capacity entries
func NewMemoryAuditLogger(capacity int, logger arbor.ILogger) *MemoryAuditLogger {
	if capacity <= 0 {
		capacity = 100
	}
	return &MemoryAuditLogger{
		entries: make([]AuditLog, capacity),
		logger:  logger,
	}
}

// LogGeneration stores entry, assigning its ID and timestamp when unset
func (l *MemoryAuditLogger) LogGeneration(entry AuditLog) error {
	l.mu.Lock()
	l.sequence++
	entry.ID = l.sequence
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	l.entries[l.next] = entry
	l.next = (l.next + 1) % len(l.entries)
	if l.next == 0 {
		l.full = true
	}
	l.mu.Unlock()

	if l.logger != nil {
		l.logger.Debug().
			Str("provider", entry.Provider).
			Str("entity", entry.Entity).
			Str("status", entry.Status).
			Str("error_kind", string(entry.ErrorKind)).
			Int("attempts", entry.Attempts).
			Int64("duration_ms", entry.Duration).
			Msg("Narrative generation audited")
	}
	return nil
}

// GetLogs returns up to limit entries, newest first. A non-positive limit
// returns everything held.
func (l *MemoryAuditLogger) GetLogs(limit int) ([]AuditLog, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := l.next
	if l.full {
		count = len(l.entries)
	}
	if limit <= 0 || limit > count {
		limit = count
	}

	logs := make([]AuditLog, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (l.next - 1 - i + len(l.entries)) % len(l.entries)
		logs = append(logs, l.entries[idx])
	}
	return logs, nil
}

// ExportToJSON writes all held entries as a JSON array, newest first
func (l *MemoryAuditLogger) ExportToJSON(w io.Writer) error {
	logs, err := l.GetLogs(0)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(logs); err != nil {
		return fmt.Errorf("failed to encode audit logs: %w", err)
	}
	return nil
}
