package diagnostic

import (
	"strconv"

	"github.com/influxdata/opsgenie-notify/keyvalue"
	"github.com/influxdata/opsgenie-notify/services/opsgenie"
	"go.uber.org/zap"
)

func Err(l *zap.Logger, msg string, err error, ctx []keyvalue.T) {
	if len(ctx) == 0 {
		l.Error(msg, zap.Error(err))
		return
	}
	fields := make([]zap.Field, len(ctx)+1) // +1 for error
	fields[0] = zap.Error(err)
	for i, kv := range ctx {
		fields[i+1] = zap.String(kv.Key, kv.Value)
	}
	l.Error(msg, fields...)
}

func Info(l *zap.Logger, msg string, ctx []keyvalue.T) {
	l.Info(msg, logFieldsFromContext(ctx)...)
}

func Debug(l *zap.Logger, msg string, ctx []keyvalue.T) {
	l.Debug(msg, logFieldsFromContext(ctx)...)
}

func logFieldsFromContext(ctx []keyvalue.T) []zap.Field {
	if len(ctx) == 0 {
		return nil
	}
	fields := make([]zap.Field, len(ctx))
	for i, kv := range ctx {
		fields[i] = zap.String(kv.Key, kv.Value)
	}
	return fields
}

// OpsGenie handler

type OpsGenieHandler struct {
	l *zap.Logger
}

func (h *OpsGenieHandler) WithContext(ctx ...keyvalue.T) opsgenie.Diagnostic {
	return &OpsGenieHandler{
		l: h.l.With(logFieldsFromContext(ctx)...),
	}
}

func (h *OpsGenieHandler) LookupFailed(kind, identifier string, err error) {
	h.l.Info("opsgenie lookup failed", zap.String("kind", kind), zap.String("identifier", identifier), zap.Error(err))
}

func (h *OpsGenieHandler) AccountMissing(accountID string) {
	h.l.Info("account no longer exists, skipping alert", zap.String("account", accountID))
}

func (h *OpsGenieHandler) AlertSent(key, requestID string) {
	h.l.Debug("alert sent", zap.String("key", key), zap.String("request_id", requestID))
}

func (h *OpsGenieHandler) Error(msg string, err error, ctx ...keyvalue.T) {
	Err(h.l, msg, err, ctx)
}

// Storage handler

type StorageHandler struct {
	l *zap.Logger
}

func (h *StorageHandler) Info(msg string, ctx ...keyvalue.T) {
	Info(h.l, msg, ctx)
}

func (h *StorageHandler) Error(msg string, err error) {
	h.l.Error(msg, zap.Error(err))
}

// Rules handler

type RulesHandler struct {
	l *zap.Logger
}

func (h *RulesHandler) Fired(key string, rules int, ctx ...keyvalue.T) {
	fields := append(logFieldsFromContext(ctx), zap.String("key", key), zap.String("rules", strconv.Itoa(rules)))
	h.l.Debug("rules fired", fields...)
}

// Server handler

type ServerHandler struct {
	l *zap.Logger
}

func (h *ServerHandler) Error(msg string, err error, ctx ...keyvalue.T) {
	Err(h.l, msg, err, ctx)
}

func (h *ServerHandler) Info(msg string, ctx ...keyvalue.T) {
	Info(h.l, msg, ctx)
}

func (h *ServerHandler) Debug(msg string, ctx ...keyvalue.T) {
	Debug(h.l, msg, ctx)
}

// Cmd handler

type CmdHandler struct {
	l *zap.Logger
}

func (h *CmdHandler) Error(msg string, err error) {
	h.l.Error(msg, zap.Error(err))
}

func (h *CmdHandler) Info(msg string, ctx ...keyvalue.T) {
	Info(h.l, msg, ctx)
}
