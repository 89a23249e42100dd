package bootstrap

import (
	"finance-rag-be/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill"
)

// watermillLogger routes watermill's internal log through the application
// logger. Trace output is folded into debug.
type watermillLogger struct {
	log    logger.ILogger
	fields watermill.LogFields
}

func NewWatermillLogger(log logger.ILogger) watermill.LoggerAdapter {
	return &watermillLogger{log: log}
}

func (w *watermillLogger) details(fields watermill.LogFields) map[string]interface{} {
	merged := w.fields.Add(fields)
	out := make(map[string]interface{}, len(merged))
	for k, v := range merged {
		out[k] = v
	}
	return out
}

func (w *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	d := w.details(fields)
	if err != nil {
		d["error"] = err.Error()
	}
	w.log.Error("WATERMILL", msg, d)
}

func (w *watermillLogger) Info(msg string, fields watermill.LogFields) {
	w.log.Info("WATERMILL", msg, w.details(fields))
}

func (w *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	w.log.Debug("WATERMILL", msg, w.details(fields))
}

func (w *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	w.log.Debug("WATERMILL", msg, w.details(fields))
}

func (w *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &watermillLogger{log: w.log, fields: w.fields.Add(fields)}
}
