package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/sheets"
	"fintrack/internal/storage"
)

// ActivityWorker turns consumed ledger events into activity log rows and,
// when an exporter is configured, spreadsheet lines.
type ActivityWorker struct {
	activity storage.ActivityRepository
	exporter sheets.RowAppender
	logger   *applog.Logger
	now      func() time.Time
}

// NewActivityWorker creates a worker. exporter may be nil to disable export.
func NewActivityWorker(activity storage.ActivityRepository, exporter sheets.RowAppender, logger *applog.Logger) *ActivityWorker {
	if logger == nil {
		logger = applog.New(nil, applog.ComponentWorker)
	}
	return &ActivityWorker{
		activity: activity,
		exporter: exporter,
		logger:   logger,
		now:      time.Now,
	}
}

// HandleLedgerEvent records ev once. A redelivered event is acknowledged
// without side effects. Export failures are logged and leave the activity
// row unexported; only a failed insert is returned so the broker requeues.
func (w *ActivityWorker) HandleLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	if ev == nil || ev.ID == "" || ev.Type == "" {
		return errors.New("ledger event without id or type")
	}

	occurredAt := ev.Timestamp
	if occurredAt.IsZero() {
		occurredAt = w.now()
	}
	inserted, err := w.activity.RecordActivity(ctx, storage.Activity{
		EventID:       ev.ID,
		EventType:     string(ev.Type),
		EntityID:      ev.EntityID,
		GroupID:       ev.GroupID,
		ParticipantID: ev.ParticipantID,
		Amount:        ev.Amount,
		Description:   Describe(ev),
		OccurredAt:    occurredAt,
		RecordedAt:    w.now(),
	})
	if err != nil {
		return fmt.Errorf("record activity: %w", err)
	}
	if !inserted {
		slog.InfoContext(ctx, "Skipping duplicate ledger event", "event_id", ev.ID, "type", ev.Type)
		return nil
	}
	w.logger.InfoContext(ctx, "Ledger event recorded", applog.Event(ev.ID, string(ev.Type), ev.EntityID, ev.Amount))

	if w.exporter == nil || !exportable(ev.Type) {
		return nil
	}
	if err := w.export(ctx, ev); err != nil {
		w.logger.ErrorContext(ctx, "Failed to export ledger event",
			applog.Event(ev.ID, string(ev.Type), ev.EntityID, ev.Amount),
			applog.Err(err))
	}
	return nil
}

func (w *ActivityWorker) export(ctx context.Context, ev *amqp.LedgerEvent) error {
	row, err := RowFromEvent(ev)
	if err != nil {
		return err
	}
	ref, err := w.exporter.Append(ctx, row)
	if err != nil {
		return fmt.Errorf("append to sheets: %w", err)
	}
	if err := w.activity.MarkExported(ctx, ev.ID, w.now()); err != nil {
		// The row is already in the sheet.
		slog.ErrorContext(ctx, "Failed to mark activity exported", "event_id", ev.ID, "error", err)
	}
	w.logger.InfoContext(ctx, "Ledger event exported", "event_id", ev.ID, applog.FieldSheetsRef, ref)
	return nil
}

func exportable(t amqp.EventType) bool {
	return t == amqp.EventExpenseRecorded || t == amqp.EventTransactionCreated
}

// RowFromEvent builds the spreadsheet line for a recorded expense or a
// created transaction.
func RowFromEvent(ev *amqp.LedgerEvent) (sheets.LedgerRow, error) {
	date, err := core.ParseDate(ev.Date)
	if err != nil {
		return sheets.LedgerRow{}, fmt.Errorf("event %s date %q: %w", ev.ID, ev.Date, err)
	}
	kind := core.TransactionType(ev.Kind)
	if kind == "" {
		kind = core.Expense
	}
	source := sheets.SourceExpense
	if ev.Type == amqp.EventTransactionCreated {
		source = sheets.SourceTransaction
	}
	return sheets.LedgerRow{
		Date:        date,
		Type:        kind,
		Category:    ev.Category,
		Description: ev.Description,
		Amount:      ev.Amount,
		Source:      source,
		EntityID:    ev.EntityID,
	}, nil
}

// Describe renders a one-line human summary of ev for the activity log.
func Describe(ev *amqp.LedgerEvent) string {
	amount := humanize.FormatFloat("#,###.##", ev.Amount)
	subject := strings.TrimSpace(ev.Description)
	if subject == "" {
		subject = ev.Category
	}

	var b strings.Builder
	switch ev.Type {
	case amqp.EventExpenseRecorded:
		fmt.Fprintf(&b, "Expense of %s recorded", amount)
	case amqp.EventExpenseUpdated:
		fmt.Fprintf(&b, "Expense updated to %s", amount)
	case amqp.EventExpenseDeleted:
		fmt.Fprintf(&b, "Expense of %s deleted", amount)
	case amqp.EventSplitSettled:
		fmt.Fprintf(&b, "Split of %s settled", amount)
	case amqp.EventTransactionCreated:
		fmt.Fprintf(&b, "%s of %s added", titleKind(ev.Kind), amount)
	case amqp.EventTransactionDeleted:
		fmt.Fprintf(&b, "%s of %s removed", titleKind(ev.Kind), amount)
	case amqp.EventMemberAdded:
		b.WriteString("Member added")
	case amqp.EventMemberRemoved:
		b.WriteString("Member removed")
	case amqp.EventGroupDeleted:
		b.WriteString("Group deleted")
	case amqp.EventParticipantDeleted:
		b.WriteString("Participant deleted")
	default:
		b.WriteString(string(ev.Type))
	}
	if subject != "" {
		fmt.Fprintf(&b, ": %s", subject)
	}
	return b.String()
}

func titleKind(kind string) string {
	if kind == string(core.Income) {
		return "Income"
	}
	return "Expense"
}
