package service

import (
	"context"

	"github.com/spec-kit/workspace-tracker/internal/domain"
	"github.com/spec-kit/workspace-tracker/internal/observability"
	"github.com/spec-kit/workspace-tracker/internal/repository"
)

// HistoryWriter appends audit rows for ticket mutations. It writes through
// whatever transaction ctx carries, so rows commit or vanish with the
// mutation that produced them.
type HistoryWriter struct {
	history repository.TicketHistoryRepository
	metrics *observability.Metrics
}

// NewHistoryWriter constructs the writer.
func NewHistoryWriter(history repository.TicketHistoryRepository, metrics *observability.Metrics) *HistoryWriter {
	return &HistoryWriter{history: history, metrics: metrics}
}

// Record writes one row per change. Nothing is written for an empty change set.
func (w *HistoryWriter) Record(ctx context.Context, workspaceID, ticketID, actorID string, action domain.HistoryAction, changes []domain.FieldChange) ([]domain.TicketHistory, error) {
	if len(changes) == 0 {
		return nil, nil
	}
	rows := make([]domain.TicketHistory, 0, len(changes))
	for _, c := range changes {
		rows = append(rows, domain.TicketHistory{
			WorkspaceID:  workspaceID,
			TicketID:     ticketID,
			FieldChanged: c.Field,
			OldValue:     c.OldValue,
			NewValue:     c.NewValue,
			Action:       action,
			ChangedBy:    actorID,
		})
	}
	if err := w.history.Append(ctx, rows); err != nil {
		return nil, err
	}
	w.metrics.RecordHistory(string(action), len(rows))
	return rows, nil
}
