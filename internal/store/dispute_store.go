package store

import (
	"context"

	"github.com/AdamBeresnev/clanhub/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// CreateDispute fails with a conflict when the match already has an open or under-review dispute.
func (s *SQLStore) CreateDispute(ctx context.Context, d *bracket.Dispute) error {
	_, err := sqlx.NamedExecContext(ctx, s.ext, `INSERT INTO match_disputes (id, match_id, filed_by, reason, status, resolved_by, response, created_at, resolved_at)
		VALUES (:id, :match_id, :filed_by, :reason, :status, :resolved_by, :response, :created_at, :resolved_at)`, d)
	return translate(err, "active dispute for this match")
}

func (s *SQLStore) GetDispute(ctx context.Context, id uuid.UUID) (*bracket.Dispute, error) {
	var d bracket.Dispute
	if err := s.get(ctx, &d, "SELECT * FROM match_disputes WHERE id = ?", id); err != nil {
		return nil, translate(err, "dispute")
	}
	return &d, nil
}

func (s *SQLStore) ListDisputes(ctx context.Context, matchID uuid.UUID) ([]bracket.Dispute, error) {
	disputes := []bracket.Dispute{}
	err := s.sel(ctx, &disputes, "SELECT * FROM match_disputes WHERE match_id = ? ORDER BY created_at, id", matchID)
	return disputes, err
}

func (s *SQLStore) TransitionDispute(ctx context.Context, id uuid.UUID, from []bracket.DisputeStatus, to bracket.DisputeStatus, resolution *Resolution) error {
	var (
		n   int64
		err error
	)
	if resolution == nil {
		n, err = s.exec(ctx, "UPDATE match_disputes SET status = ? WHERE id = ? AND status IN (?)", to, id, from)
	} else {
		n, err = s.exec(ctx, "UPDATE match_disputes SET status = ?, resolved_by = ?, response = ?, resolved_at = ? WHERE id = ? AND status IN (?)",
			to, resolution.ResolvedBy, resolution.Response, resolution.ResolvedAt.UTC(), id, from)
	}
	if err != nil {
		return err
	}
	if n == 0 {
		return s.casFailed(ctx, "match_disputes", "status", "dispute", id)
	}
	return nil
}
