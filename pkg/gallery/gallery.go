// Package gallery is the read-only collaborator over the record log. It
// holds no core state: it loads the full log, hands it to a render
// function, and re-reads whenever the log's storage key changes.
package gallery

import (
	"context"

	"imgharvest/pkg/logger"
	"imgharvest/pkg/models"
	"imgharvest/pkg/store"
)

// RenderFunc receives the full record list after every change
type RenderFunc func(records []models.FileRecord)

// Viewer watches the record log and re-renders on change
type Viewer struct {
	records *store.RecordLog
	render  RenderFunc
	logger  logger.Logger
}

// NewViewer creates a viewer over the record log
func NewViewer(records *store.RecordLog, render RenderFunc, log logger.Logger) *Viewer {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Viewer{
		records: records,
		render:  render,
		logger:  log,
	}
}

// Run renders the current log once, then re-renders on every change
// notification until the context is cancelled.
func (v *Viewer) Run(ctx context.Context) error {
	changes := v.records.Watch()

	v.reload()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changes:
			v.reload()
		}
	}
}

func (v *Viewer) reload() {
	records, err := v.records.All()
	if err != nil {
		// The log stays whatever it was; the next change retries
		v.logger.WithError(err).Warn("record log read failed")
		return
	}
	v.render(records)
}
