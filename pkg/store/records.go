package store

import (
	"encoding/json"
	"fmt"
	"sync"

	"imgharvest/pkg/models"
)

// RecordLog is the append-only log of accepted downloads. The core only
// appends; the gallery reads it in full and re-reads on change.
type RecordLog struct {
	store Store
	mu    sync.Mutex
}

// NewRecordLog creates a record log over the given store
func NewRecordLog(s Store) *RecordLog {
	return &RecordLog{store: s}
}

// Append adds one record to the log. Appends are best-effort for callers:
// the orchestrator logs a failure but never blocks or rolls back a download
// because of it.
func (l *RecordLog) Append(record models.FileRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.loadLocked()
	if err != nil {
		return err
	}

	records = append(records, record)

	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode record log: %w", err)
	}

	if err := l.store.Set(DownloadedFilesKey, data); err != nil {
		return fmt.Errorf("failed to persist record log: %w", err)
	}
	return nil
}

// All returns every record in append order
func (l *RecordLog) All() ([]models.FileRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadLocked()
}

// Watch returns a channel signalled after every committed append
func (l *RecordLog) Watch() <-chan struct{} {
	return l.store.Watch(DownloadedFilesKey)
}

func (l *RecordLog) loadLocked() ([]models.FileRecord, error) {
	data, ok, err := l.store.Get(DownloadedFilesKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read record log: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var records []models.FileRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode record log: %w", err)
	}
	return records, nil
}
