package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
	StatusExpired Status = "expired"
)

type Kind string

const (
	KindTournamentStarted  Kind = "tournament_started"
	KindMatchReady         Kind = "match_ready"
	KindMatchResult        Kind = "match_result"
	KindDisputeOpened      Kind = "dispute_opened"
	KindTournamentFinished Kind = "tournament_finished"
	KindReminder           Kind = "reminder"
)

// ErrLeaseLost is returned when a job is no longer held by the worker trying to settle it.
var ErrLeaseLost = errors.New("job lease lost")

const DefaultMaxAttempts = 5

type Job struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Kind         Kind       `db:"kind" json:"kind"`
	TournamentID *uuid.UUID `db:"tournament_id" json:"tournament_id,omitempty"`
	Payload      string     `db:"payload" json:"-"`
	Status       Status     `db:"status" json:"status"`
	Attempts     int        `db:"attempts" json:"attempts"`
	MaxAttempts  int        `db:"max_attempts" json:"max_attempts"`
	RunAt        time.Time  `db:"run_at" json:"run_at"`
	ExpiresAt    *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	ClaimedBy    *string    `db:"claimed_by" json:"claimed_by,omitempty"`
	LeaseUntil   *time.Time `db:"lease_until" json:"lease_until,omitempty"`
	LastError    *string    `db:"last_error" json:"last_error,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// Announcement is the job payload: what gets posted to the community channel.
type Announcement struct {
	Title   string     `json:"title"`
	Body    string     `json:"body"`
	MatchID *uuid.UUID `json:"match_id,omitempty"`
	Fields  []Field    `json:"fields,omitempty"`
}

// New builds a queued job created at now. A zero maxAttempts falls back to DefaultMaxAttempts.
func New(kind Kind, tournamentID *uuid.UUID, a Announcement, now, runAt time.Time, maxAttempts int) (*Job, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to encode announcement: %w", err)
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	now = now.UTC()
	return &Job{
		ID:           uuid.New(),
		Kind:         kind,
		TournamentID: tournamentID,
		Payload:      string(payload),
		Status:       StatusQueued,
		MaxAttempts:  maxAttempts,
		RunAt:        runAt.UTC(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (j *Job) Announcement() (Announcement, error) {
	var a Announcement
	if err := json.Unmarshal([]byte(j.Payload), &a); err != nil {
		return a, fmt.Errorf("failed to decode payload of job %s: %w", j.ID, err)
	}
	return a, nil
}

// Message is what publishers receive: the announcement plus the job it came from.
type Message struct {
	JobID        uuid.UUID
	Kind         Kind
	TournamentID *uuid.UUID
	Announcement
	CreatedAt time.Time
}
