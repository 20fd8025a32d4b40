package log

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StructuredLogger logs the engine's domain events with a fixed field set.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	if logger == nil {
		logger = Default()
	}
	return &StructuredLogger{logger: logger}
}

func (sl *StructuredLogger) LogThresholdNotified(ctx context.Context, budgetID uuid.UUID, workspaceID int64, threshold, spentPct int, periodKey string) {
	fields := NewFields().
		WithBudget(budgetID, workspaceID, "").
		WithThreshold(threshold, spentPct, periodKey).
		WithOperation(OpNotify)
	sl.logger.InfoContext(ctx, "Threshold notification sent", fields.ToSlice()...)
}

func (sl *StructuredLogger) LogNotificationFailed(ctx context.Context, budgetID uuid.UUID, workspaceID int64, threshold int, periodKey string, err error) {
	fields := NewFields().
		WithBudget(budgetID, workspaceID, "").
		With(FieldThreshold, threshold).
		With(FieldPeriodKey, periodKey).
		WithOperation(OpNotify).
		WithErrorType(ErrorTypeNetwork).
		WithError(err)
	sl.logger.ErrorContext(ctx, "Threshold notification failed", fields.ToSlice()...)
}

func (sl *StructuredLogger) LogNoRecipients(ctx context.Context, budgetID uuid.UUID, workspaceID int64, name string) {
	fields := NewFields().
		WithBudget(budgetID, workspaceID, name).
		WithOperation(OpNotify)
	sl.logger.WarnContext(ctx, "No email addresses configured for budget", fields.ToSlice()...)
}

// LogBudgetSkipped records a budget left out of a batch computation.
func (sl *StructuredLogger) LogBudgetSkipped(ctx context.Context, budgetID uuid.UUID, workspaceID int64, op string, err error) {
	fields := NewFields().
		WithBudget(budgetID, workspaceID, "").
		WithOperation(op).
		WithError(err)
	sl.logger.WarnContext(ctx, "Budget skipped", fields.ToSlice()...)
}

func (sl *StructuredLogger) LogSweepCompleted(ctx context.Context, workspaceID int64, budgets, exceeded, notified, failed int, elapsed time.Duration) {
	fields := NewFields().
		WithWorkspace(workspaceID).
		WithOperation(OpSweep).
		With(FieldBudgetCount, budgets).
		With(FieldExceeded, exceeded).
		With(FieldNotified, notified).
		With(FieldFailed, failed).
		WithDuration(elapsed)
	sl.logger.InfoContext(ctx, "Sweep completed", fields.ToSlice()...)
}

// LogError logs an error with structured context
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	sl.logger.ErrorContext(ctx, msg, fields.WithError(err).WithOperation(operation).ToSlice()...)
}
