package bracket

import (
	"time"

	"github.com/google/uuid"
)

type DisputeStatus string

const (
	DisputeOpen        DisputeStatus = "open"
	DisputeUnderReview DisputeStatus = "under_review"
	DisputeResolved    DisputeStatus = "resolved"
	DisputeRejected    DisputeStatus = "rejected"
)

func (s DisputeStatus) Active() bool {
	return s == DisputeOpen || s == DisputeUnderReview
}

const (
	MaxDisputeReasonLength   = 1000
	MaxDisputeResponseLength = 1000
)

type Dispute struct {
	ID         uuid.UUID     `db:"id" json:"id"`
	MatchID    uuid.UUID     `db:"match_id" json:"match_id"`
	FiledBy    string        `db:"filed_by" json:"filed_by"`
	Reason     string        `db:"reason" json:"reason"`
	Status     DisputeStatus `db:"status" json:"status"`
	ResolvedBy *string       `db:"resolved_by" json:"resolved_by,omitempty"`
	Response   *string       `db:"response" json:"response,omitempty"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
	ResolvedAt *time.Time    `db:"resolved_at" json:"resolved_at,omitempty"`
}
