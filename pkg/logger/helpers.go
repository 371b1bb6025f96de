package logger

import (
	"context"

	"github.com/rs/zerolog"
)

// LogCandidate logs the outcome of a candidate admission decision
func LogCandidate(kind, key string, admitted bool, reason string) {
	fields := map[string]interface{}{
		"kind":     kind,
		"key":      key,
		"admitted": admitted,
	}
	if reason != "" {
		fields["reason"] = reason
	}

	if admitted {
		GetLogger().DebugWithFields("Candidate admitted", fields)
	} else {
		GetLogger().DebugWithFields("Candidate dropped", fields)
	}
}

// LogDownload logs a terminal download outcome
func LogDownload(key, filename string, success bool, err error) {
	fields := map[string]interface{}{
		"key":      key,
		"filename": filename,
		"success":  success,
	}

	logger := GetLogger().WithFields(fields)

	if err != nil {
		logger.WithError(err).Error("Download failed")
	} else if success {
		logger.Info("Download completed")
	} else {
		logger.Warn("Download interrupted")
	}
}

// LogRollback logs a dedup-cache rollback after an interrupted download
func LogRollback(keyType, key string) {
	GetLogger().WithFields(map[string]interface{}{
		"key_type": keyType,
		"key":      key,
		"action":   "rollback",
	}).Warn("Rolled back persisted key after interrupted download")
}

// LogComponentStart logs when a component starts
func LogComponentStart(component string, config map[string]interface{}) {
	logger := GetLogger().WithField("component", component)

	if len(config) > 0 {
		logger = logger.WithFields(config)
	}

	logger.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(component string, reason string) {
	GetLogger().WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

// nopLogger is a logger that does nothing (useful for testing)
type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }
