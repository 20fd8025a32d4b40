package backend

import (
	"context"

	"budgetcontrol/internal/core"
	"budgetcontrol/internal/log"
)

// LogTransport writes alerts to the log instead of delivering them.
type LogTransport struct {
	logger *log.Logger
}

func NewLogTransport(logger *log.Logger) *LogTransport {
	return &LogTransport{logger: logger}
}

func (t *LogTransport) Send(ctx context.Context, n core.Notification) error {
	t.logger.InfoContext(ctx, "Budget alert",
		log.FieldBudgetID, n.BudgetID.String(),
		log.FieldWorkspaceID, n.WorkspaceID,
		log.FieldThreshold, n.Threshold,
		log.FieldSpentPct, n.SpentPercentage,
		log.FieldRecipients, n.Recipients,
		"subject", n.Subject)
	return nil
}
