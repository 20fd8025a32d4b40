package services

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"budgetcontrol/internal/core"
	"budgetcontrol/internal/ledger"
	"budgetcontrol/internal/log"
)

// Notifier sends one alert per crossed threshold and accounting period.
type Notifier struct {
	transport ledger.NotificationTransport
	claims    ledger.ClaimLedger
	logger    *log.Logger
	events    *log.StructuredLogger
}

func NewNotifier(transport ledger.NotificationTransport, claims ledger.ClaimLedger, logger *log.Logger) *Notifier {
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.WithComponent(log.ComponentNotifier)
	return &Notifier{
		transport: transport,
		claims:    claims,
		logger:    logger,
		events:    log.NewStructuredLogger(logger),
	}
}

// CheckAndNotify alerts the recipients of st's budget about every exceeded
// threshold not yet notified in st's window, and returns the thresholds it
// notified in ascending order.
//
// Each threshold is claimed before sending. A claim already held is skipped.
// A failed send releases the claim, is left out of the result and does not
// stop the remaining thresholds.
func (n *Notifier) CheckAndNotify(ctx context.Context, st core.Stats) []int {
	notified := []int{}

	exceeded := st.ExceededThresholds()
	if len(exceeded) == 0 {
		return notified
	}
	b := st.Budget()
	recipients := recipientsOf(b)
	if len(recipients) == 0 {
		n.events.LogNoRecipients(ctx, b.ID, b.WorkspaceID, b.Name)
		return notified
	}

	for _, t := range exceeded {
		if ctx.Err() != nil {
			break
		}
		key := core.NewClaimKey(b.ID, t, st.Window())

		claimed, err := n.claims.Claim(ctx, key)
		if err != nil {
			n.events.LogError(ctx, "Threshold claim failed", err, log.OpClaim,
				log.NewFields().WithBudget(b.ID, b.WorkspaceID, b.Name).With(log.FieldThreshold, t))
			continue
		}
		if !claimed {
			n.logger.DebugContext(ctx, "Threshold already notified in this period",
				log.FieldBudgetID, b.ID.String(), log.FieldThreshold, t, log.FieldPeriodKey, key.PeriodKey)
			continue
		}

		msg := BuildNotification(st, t)
		msg.Recipients = recipients
		if err := n.transport.Send(ctx, msg); err != nil {
			n.events.LogNotificationFailed(ctx, b.ID, b.WorkspaceID, t, key.PeriodKey, err)
			if rerr := n.claims.Release(context.WithoutCancel(ctx), key); rerr != nil {
				n.events.LogError(ctx, "Threshold claim release failed", rerr, log.OpRelease,
					log.NewFields().WithBudget(b.ID, b.WorkspaceID, b.Name).With(log.FieldThreshold, t))
			}
			continue
		}

		notified = append(notified, t)
		n.events.LogThresholdNotified(ctx, b.ID, b.WorkspaceID, t, msg.SpentPercentage, key.PeriodKey)
	}
	return notified
}

// BuildNotification renders the alert for threshold t. Recipients are left to the caller.
func BuildNotification(st core.Stats, t int) core.Notification {
	b := st.Budget()
	spentPct, _ := st.SpentPercentage()
	body := fmt.Sprintf("Budget '%s' has reached %d%% of its allocated amount.\n\n"+
		"Budget Details:\n"+
		"- Total Budget: %s\n"+
		"- Total Spent: %s\n"+
		"- Remaining: %s\n"+
		"- Threshold: %d%%\n"+
		"- Current Spending: %d%%",
		b.Name,
		t,
		core.FormatAmount(st.Total()),
		core.FormatAmount(st.TotalSpent().Abs()),
		core.FormatAmount(st.TotalRemaining()),
		t,
		spentPct,
	)
	return core.Notification{
		BudgetID:        b.ID,
		WorkspaceID:     b.WorkspaceID,
		BudgetName:      b.Name,
		Threshold:       t,
		SpentPercentage: spentPct,
		Subject:         fmt.Sprintf("Budget Alert: %d%% threshold exceeded", t),
		Body:            body,
		PeriodKey:       st.Window().Key(),
	}
}

func recipientsOf(b core.Budget) []string {
	var out []string
	for _, e := range b.Emails {
		e = strings.TrimSpace(e)
		if e != "" && !slices.Contains(out, e) {
			out = append(out, e)
		}
	}
	return out
}
