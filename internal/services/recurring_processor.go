package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// RecurringProcessor is the periodic sweep that executes due auto-execute
// recurring records through the movement engine. It treats each due record
// independently: one failure is logged and skipped, never aborting the
// sweep, and the core performs no deduplication of its own.
type RecurringProcessor struct {
	repo   *storage.Repository
	engine *MovementService
}

func NewRecurringProcessor(repo *storage.Repository, engine *MovementService) *RecurringProcessor {
	return &RecurringProcessor{
		repo:   repo,
		engine: engine,
	}
}

// ProcessDue executes every recurring record due at now and returns how many
// executed successfully.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	if p.repo == nil || p.engine == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	due, err := p.repo.Queries().ListDueAutoExecute(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list due recurring payments: %w", err)
	}

	slog.InfoContext(ctx, "Processing due recurring payments",
		"due", len(due),
		"processing_date", now.Format("2006-01-02"))

	processed := 0
	for _, rec := range due {
		if err := p.execute(ctx, rec); err != nil {
			slog.ErrorContext(ctx, "Failed to execute recurring payment",
				"recurring_id", rec.ID,
				"kind", rec.Kind,
				"error", err)
			continue
		}
		processed++
		slog.InfoContext(ctx, "Executed recurring payment",
			"recurring_id", rec.ID,
			"kind", rec.Kind,
			"amount_cents", rec.Amount.Cents,
			"frequency", rec.Frequency)
	}

	slog.InfoContext(ctx, "Recurring sweep complete",
		"processed", processed,
		"total_due", len(due))

	return processed, nil
}

func (p *RecurringProcessor) execute(ctx context.Context, rec core.RecurringPayment) error {
	params := RecurringExecParams{
		UserID:      rec.UserID,
		RecurringID: rec.ID,
		AccountID:   rec.AccountID,
		Amount:      rec.Amount,
		Currency:    rec.Currency,
		CategoryIDs: rec.CategoryIDs,
		Description: fmt.Sprintf("recurring %s", rec.Frequency),
	}

	// On failure (insufficient funds included) the record keeps its due
	// schedule and the next sweep retries it.
	var err error
	switch rec.Kind {
	case core.TransactionIncome:
		_, err = p.engine.ExecuteRecurringIncome(ctx, params)
	default:
		_, err = p.engine.ExecuteRecurringPayment(ctx, params)
	}
	return err
}

// DueForNotification lists active records with notifications enabled whose
// next execution falls inside their lead window at now. The email
// collaborator consumes this; no rendering or delivery happens here.
func (p *RecurringProcessor) DueForNotification(ctx context.Context, now time.Time) ([]core.RecurringPayment, error) {
	records, err := p.repo.Queries().ListNotifiable(ctx)
	if err != nil {
		return nil, fmt.Errorf("list notifiable recurring payments: %w", err)
	}

	var out []core.RecurringPayment
	for _, rec := range records {
		if rec.NextExecution == nil {
			continue
		}
		lead := time.Duration(rec.NotifyLeadDays) * 24 * time.Hour
		if !now.Before(rec.NextExecution.Add(-lead)) {
			out = append(out, rec)
		}
	}
	return out, nil
}
