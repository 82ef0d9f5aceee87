package types

import "time"

// EventType names a kind of expense mutation.
type EventType string

const (
	EventExpenseCreated      EventType = "expense.created"
	EventExpenseUpdated      EventType = "expense.updated"
	EventExpenseDeleted      EventType = "expense.deleted"
	EventExpenseBulkUploaded EventType = "expense.bulk_uploaded"
	EventExpenseBulkDeleted  EventType = "expense.bulk_deleted"
)

// ExpenseEvent is published after an expense mutation commits.
type ExpenseEvent struct {
	Type       EventType `json:"type"`
	IDs        []string  `json:"ids"`
	Count      int       `json:"count"`
	OccurredAt time.Time `json:"occurredAt"`
}

// NewExpenseEvent builds an event for the given ids. Count defaults to len(ids).
func NewExpenseEvent(kind EventType, ids []string, now time.Time) ExpenseEvent {
	if ids == nil {
		ids = []string{}
	}
	return ExpenseEvent{
		Type:       kind,
		IDs:        ids,
		Count:      len(ids),
		OccurredAt: now.UTC(),
	}
}
