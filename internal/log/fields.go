package log

import (
	"log/slog"
	"net/http"
)

// Attribute keys shared by every component.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldEvent      = "event"
	FieldGroupID    = "group_id"
	FieldSheetsRef  = "sheets_ref"
)

// Component names used as the FieldComponent value.
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentGraphQL   = "graphql"
	ComponentLedger    = "ledger"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentSecurity  = "security"
	ComponentRateLimit = "rate_limit"
	ComponentAuth      = "auth"
)

// Err returns the error attribute, or an empty attribute for a nil error,
// which slog drops.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(FieldError, err.Error())
}

// Event groups the identifying fields of a ledger event.
func Event(id, eventType, entityID string, amount float64) slog.Attr {
	return slog.Group(FieldEvent,
		slog.String("id", id),
		slog.String("type", eventType),
		slog.String("entity_id", entityID),
		slog.Float64("amount", amount),
	)
}

// StatusLevel picks the level a completed request is logged at.
func StatusLevel(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
