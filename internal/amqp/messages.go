package amqp

import (
	"encoding/json"
	"strconv"
	"time"

	"budgetcontrol/internal/core"
)

// BudgetAlertMessage is the payload published when a budget crosses a threshold.
// Consumers turn it into an email; the engine never talks to a mail server.
type BudgetAlertMessage struct {
	BudgetID        string    `json:"budget_id"`
	WorkspaceID     int64     `json:"workspace_id"`
	BudgetName      string    `json:"budget_name"`
	Threshold       int       `json:"threshold"`
	SpentPercentage int       `json:"spent_percentage"`
	Recipients      []string  `json:"recipients"`
	Subject         string    `json:"subject"`
	Body            string    `json:"body"`
	PeriodKey       string    `json:"period_key"`
	Timestamp       time.Time `json:"timestamp"`
}

// NewBudgetAlertMessage copies n into a message stamped with the current time.
func NewBudgetAlertMessage(n core.Notification) *BudgetAlertMessage {
	return &BudgetAlertMessage{
		BudgetID:        n.BudgetID.String(),
		WorkspaceID:     n.WorkspaceID,
		BudgetName:      n.BudgetName,
		Threshold:       n.Threshold,
		SpentPercentage: n.SpentPercentage,
		Recipients:      append([]string(nil), n.Recipients...),
		Subject:         n.Subject,
		Body:            n.Body,
		PeriodKey:       n.PeriodKey,
		Timestamp:       time.Now(),
	}
}

// MessageID is stable across retries of the same alert.
func (m *BudgetAlertMessage) MessageID() string {
	return m.BudgetID + ":" + strconv.Itoa(m.Threshold) + ":" + m.PeriodKey
}

func (m *BudgetAlertMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func parseBudgetAlertMessage(data []byte) (*BudgetAlertMessage, error) {
	var msg BudgetAlertMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
