package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AdamBeresnev/clanhub/internal/apperr"
	"github.com/AdamBeresnev/clanhub/internal/bracket"
	"github.com/AdamBeresnev/clanhub/internal/db"
	"github.com/AdamBeresnev/clanhub/internal/jobs"
	"github.com/AdamBeresnev/clanhub/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOrganizerID = "100000000000000001"

// setupTestDB creates an in-memory SQLite database and applies migrations
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := db.Open(context.Background(), db.DriverSQLite, "file:"+uuid.NewString()+"?mode=memory&cache=shared&_foreign_keys=1")
	require.NoError(t, err, "Failed to open in-memory DB")
	require.NoError(t, db.RunMigrations(database), "Failed to apply migrations")

	t.Cleanup(func() { database.Close() })
	return database
}

func createTestTournament(t *testing.T, s *SQLStore, state bracket.TournamentState) *bracket.Tournament {
	t.Helper()
	now := time.Now().UTC()
	tournament := &bracket.Tournament{
		ID:           uuid.New(),
		OrganizerID:  testOrganizerID,
		Name:         "Friday Cup",
		Format:       bracket.SingleElimination,
		TeamCapacity: 8,
		TeamSize:     5,
		State:        state,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, s.CreateTournament(context.Background(), tournament))
	return tournament
}

func createTestTeam(t *testing.T, s *SQLStore, tournamentID uuid.UUID, name, captain string) *bracket.Team {
	t.Helper()
	team := &bracket.Team{
		ID:           uuid.New(),
		TournamentID: tournamentID,
		Name:         name,
		CaptainID:    captain,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, s.CreateTeam(context.Background(), team))
	return team
}

func TestCreateAndGetTournament(t *testing.T) {
	s := New(setupTestDB(t))
	ctx := context.Background()

	tournament := createTestTournament(t, s, bracket.TournamentDraft)

	fetched, err := s.GetTournament(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, tournament.ID, fetched.ID)
	assert.Equal(t, "Friday Cup", fetched.Name)
	assert.Equal(t, bracket.SingleElimination, fetched.Format)
	assert.Equal(t, bracket.TournamentDraft, fetched.State)
	assert.Nil(t, fetched.WinnerTeamID)

	_, err = s.GetTournament(ctx, uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	drafts, err := s.ListTournaments(ctx, bracket.TournamentDraft)
	require.NoError(t, err)
	assert.Len(t, drafts, 1)

	ongoing, err := s.ListTournaments(ctx, bracket.TournamentOngoing)
	require.NoError(t, err)
	assert.Empty(t, ongoing)
}

func TestTransitionTournament(t *testing.T) {
	s := New(setupTestDB(t))
	ctx := context.Background()
	tournament := createTestTournament(t, s, bracket.TournamentDraft)
	now := time.Now().UTC()

	err := s.TransitionTournament(ctx, tournament.ID, []bracket.TournamentState{bracket.TournamentDraft}, bracket.TournamentRegistrationOpen, now)
	require.NoError(t, err)

	// Same transition again loses the compare-and-set
	err = s.TransitionTournament(ctx, tournament.ID, []bracket.TournamentState{bracket.TournamentDraft}, bracket.TournamentRegistrationOpen, now)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	err = s.TransitionTournament(ctx, uuid.New(), []bracket.TournamentState{bracket.TournamentDraft}, bracket.TournamentRegistrationOpen, now)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	err = s.StartTournament(ctx, tournament.ID, []bracket.TournamentState{bracket.TournamentRegistrationOpen, bracket.TournamentRegistrationClosed}, 3, now)
	require.NoError(t, err)

	require.NoError(t, s.AdvanceRound(ctx, tournament.ID, 2, now))
	// Never goes backwards
	require.NoError(t, s.AdvanceRound(ctx, tournament.ID, 1, now))

	fetched, err := s.GetTournament(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.TournamentOngoing, fetched.State)
	assert.Equal(t, 3, fetched.RoundsTotal)
	assert.Equal(t, 2, fetched.CurrentRound)

	winner := uuid.New()
	require.NoError(t, s.FinishTournament(ctx, tournament.ID, &winner, now))
	assert.ErrorIs(t, s.FinishTournament(ctx, tournament.ID, &winner, now), apperr.ErrInvalidState)
}

func TestTeamNameUniquePerTournament(t *testing.T) {
	s := New(setupTestDB(t))
	ctx := context.Background()
	first := createTestTournament(t, s, bracket.TournamentRegistrationOpen)
	second := createTestTournament(t, s, bracket.TournamentRegistrationOpen)

	createTestTeam(t, s, first.ID, "Night Owls", "1")

	dup := &bracket.Team{ID: uuid.New(), TournamentID: first.ID, Name: "Night Owls", CaptainID: "2", CreatedAt: time.Now().UTC()}
	assert.ErrorIs(t, s.CreateTeam(ctx, dup), apperr.ErrConflict)

	// Another tournament may reuse the name
	createTestTeam(t, s, second.ID, "Night Owls", "3")
}

func TestListTeamsSeedOrder(t *testing.T) {
	s := New(setupTestDB(t))
	ctx := context.Background()
	tournament := createTestTournament(t, s, bracket.TournamentRegistrationOpen)

	base := time.Now().UTC()
	teams := []bracket.Team{
		{ID: uuid.New(), TournamentID: tournament.ID, Name: "Unseeded early", CaptainID: "1", CreatedAt: base},
		{ID: uuid.New(), TournamentID: tournament.ID, Name: "Seed 2", CaptainID: "2", Seed: utils.Ptr(2), CreatedAt: base.Add(time.Second)},
		{ID: uuid.New(), TournamentID: tournament.ID, Name: "Unseeded late", CaptainID: "3", CreatedAt: base.Add(2 * time.Second)},
		{ID: uuid.New(), TournamentID: tournament.ID, Name: "Seed 1", CaptainID: "4", Seed: utils.Ptr(1), CreatedAt: base.Add(3 * time.Second)},
	}
	for i := range teams {
		require.NoError(t, s.CreateTeam(ctx, &teams[i]))
	}

	listed, err := s.ListTeams(ctx, tournament.ID)
	require.NoError(t, err)
	names := make([]string, 0, len(listed))
	for _, team := range listed {
		names = append(names, team.Name)
	}
	assert.Equal(t, []string{"Seed 1", "Seed 2", "Unseeded early", "Unseeded late"}, names)

	count, err := s.CountTeams(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestMembersKeepCountInSync(t *testing.T) {
	s := New(setupTestDB(t))
	ctx := context.Background()
	tournament := createTestTournament(t, s, bracket.TournamentRegistrationOpen)
	alpha := createTestTeam(t, s, tournament.ID, "Alpha", "1")
	bravo := createTestTeam(t, s, tournament.ID, "Bravo", "2")

	add := func(teamID uuid.UUID, userID string) error {
		return s.InTx(ctx, func(r Repository) error {
			return r.AddMember(ctx, &bracket.TeamMember{TeamID: teamID, TournamentID: tournament.ID, UserID: userID, JoinedAt: time.Now().UTC()}, 3)
		})
	}

	require.NoError(t, add(alpha.ID, "1"))
	require.NoError(t, add(alpha.ID, "5"))
	assert.ErrorIs(t, add(alpha.ID, "5"), apperr.ErrConflict)
	// One team per tournament
	assert.ErrorIs(t, add(bravo.ID, "5"), apperr.ErrConflict)

	team, err := s.GetTeam(ctx, alpha.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, team.MemberCount)

	err = s.InTx(ctx, func(r Repository) error { return r.RemoveMember(ctx, alpha.ID, "5") })
	require.NoError(t, err)
	err = s.InTx(ctx, func(r Repository) error { return r.RemoveMember(ctx, alpha.ID, "5") })
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	members, err := s.ListMembers(ctx, alpha.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "1", members[0].UserID)

	team, err = s.GetTeam(ctx, alpha.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, team.MemberCount)
}

func TestAddMemberStopsAtTeamSize(t *testing.T) {
	s := New(setupTestDB(t))
	ctx := context.Background()
	tournament := createTestTournament(t, s, bracket.TournamentRegistrationOpen)
	alpha := createTestTeam(t, s, tournament.ID, "Alpha", "1")

	add := func(userID string) error {
		return s.InTx(ctx, func(r Repository) error {
			return r.AddMember(ctx, &bracket.TeamMember{TeamID: alpha.ID, TournamentID: tournament.ID, UserID: userID, JoinedAt: time.Now().UTC()}, 2)
		})
	}

	require.NoError(t, add("1"))
	require.NoError(t, add("2"))
	assert.ErrorIs(t, add("3"), apperr.ErrConflict)

	err := s.InTx(ctx, func(r Repository) error {
		return r.AddMember(ctx, &bracket.TeamMember{TeamID: uuid.New(), TournamentID: tournament.ID, UserID: "4", JoinedAt: time.Now().UTC()}, 2)
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	team, err := s.GetTeam(ctx, alpha.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, team.MemberCount)
}

func TestLockTournament(t *testing.T) {
	s := New(setupTestDB(t))
	ctx := context.Background()
	tournament := createTestTournament(t, s, bracket.TournamentRegistrationOpen)

	err := s.InTx(ctx, func(r Repository) error {
		if err := r.LockTournament(ctx, tournament.ID); err != nil {
			return err
		}
		count, err := r.CountTeams(ctx, tournament.ID)
		assert.Zero(t, count)
		return err
	})
	require.NoError(t, err)

	assert.ErrorIs(t, s.LockTournament(ctx, uuid.New()), apperr.ErrNotFound)
}

func TestInTxRollsBack(t *testing.T) {
	s := New(setupTestDB(t))
	ctx := context.Background()
	tournament := createTestTournament(t, s, bracket.TournamentRegistrationOpen)
	boom := errors.New("boom")

	err := s.InTx(ctx, func(r Repository) error {
		team := &bracket.Team{ID: uuid.New(), TournamentID: tournament.ID, Name: "Ghosts", CaptainID: "1", CreatedAt: time.Now().UTC()}
		if err := r.CreateTeam(ctx, team); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	count, err := s.CountTeams(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func createTestMatch(t *testing.T, s *SQLStore, tournamentID uuid.UUID, round, position int, a, b *uuid.UUID) *bracket.Match {
	t.Helper()
	now := time.Now().UTC()
	m := bracket.Match{
		ID:           uuid.New(),
		TournamentID: tournamentID,
		Round:        round,
		Position:     position,
		TeamAID:      a,
		TeamBID:      b,
		State:        bracket.MatchPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, s.CreateMatches(context.Background(), []bracket.Match{m}))
	return &m
}

func TestMatchCompareAndSet(t *testing.T) {
	s := New(setupTestDB(t))
	ctx := context.Background()
	tournament := createTestTournament(t, s, bracket.TournamentOngoing)
	alpha := createTestTeam(t, s, tournament.ID, "Alpha", "1")
	bravo := createTestTeam(t, s, tournament.ID, "Bravo", "2")
	m := createTestMatch(t, s, tournament.ID, 1, 0, &alpha.ID, &bravo.ID)
	now := time.Now().UTC()

	require.NoError(t, s.ReportMatch(ctx, m.ID, 10, 7, "1", now))
	assert.ErrorIs(t, s.ReportMatch(ctx, m.ID, 3, 1, "2", now), apperr.ErrInvalidState)
	assert.ErrorIs(t, s.ReportMatch(ctx, uuid.New(), 3, 1, "2", now), apperr.ErrNotFound)

	require.NoError(t, s.SetMatchState(ctx, m.ID, bracket.MatchReported, bracket.MatchDisputed, now))
	assert.ErrorIs(t, s.SetMatchState(ctx, m.ID, bracket.MatchReported, bracket.MatchDisputed, now), apperr.ErrInvalidState)

	err := s.VerifyMatch(ctx, m.ID, []bracket.MatchState{bracket.MatchDisputed}, alpha.ID, bravo.ID, testOrganizerID, now)
	require.NoError(t, err)

	fetched, err := s.GetMatch(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.MatchVerified, fetched.State)
	require.NotNil(t, fetched.ScoreA)
	assert.Equal(t, 10, *fetched.ScoreA)
	assert.Equal(t, 7, *fetched.ScoreB)
	assert.Equal(t, alpha.ID, *fetched.WinnerID)
	assert.Equal(t, bravo.ID, *fetched.LoserID)
	assert.Equal(t, "1", *fetched.ReportedBy)
	assert.Equal(t, testOrganizerID, *fetched.VerifiedBy)

	err = s.VerifyMatch(ctx, m.ID, []bracket.MatchState{bracket.MatchReported, bracket.MatchPending}, alpha.ID, bravo.ID, testOrganizerID, now)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestMatchPositionUnique(t *testing.T) {
	s := New(setupTestDB(t))
	ctx := context.Background()
	tournament := createTestTournament(t, s, bracket.TournamentOngoing)
	createTestMatch(t, s, tournament.ID, 1, 0, nil, nil)

	now := time.Now().UTC()
	dup := bracket.Match{ID: uuid.New(), TournamentID: tournament.ID, Round: 1, Position: 0, State: bracket.MatchPending, CreatedAt: now, UpdatedAt: now}
	assert.ErrorIs(t, s.CreateMatches(ctx, []bracket.Match{dup}), apperr.ErrConflict)
}

func TestPlaceTeamAndCredit(t *testing.T) {
	s := New(setupTestDB(t))
	ctx := context.Background()
	tournament := createTestTournament(t, s, bracket.TournamentOngoing)
	alpha := createTestTeam(t, s, tournament.ID, "Alpha", "1")
	bravo := createTestTeam(t, s, tournament.ID, "Bravo", "2")
	final := createTestMatch(t, s, tournament.ID, 2, 0, nil, nil)
	now := time.Now().UTC()

	require.NoError(t, s.PlaceTeam(ctx, final.ID, bracket.SlotB, alpha.ID, now))
	assert.ErrorIs(t, s.PlaceTeam(ctx, final.ID, bracket.SlotB, bravo.ID, now), apperr.ErrConflict)

	at, err := s.GetMatchAt(ctx, tournament.ID, 2, 0)
	require.NoError(t, err)
	assert.Nil(t, at.TeamAID)
	require.NotNil(t, at.TeamBID)
	assert.Equal(t, alpha.ID, *at.TeamBID)

	open, err := s.CountOpenMatches(ctx, tournament.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, open)

	require.NoError(t, s.CreditResult(ctx, alpha.ID, bravo.ID, true))
	require.NoError(t, s.CreditResult(ctx, alpha.ID, bravo.ID, false))

	winner, err := s.GetTeam(ctx, alpha.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, winner.Wins)
	assert.Equal(t, 2*bracket.PointsPerWin, winner.Points)
	assert.False(t, winner.Eliminated)

	loser, err := s.GetTeam(ctx, bravo.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, loser.Losses)
	assert.True(t, loser.Eliminated)
}

func TestOneActiveDisputePerMatch(t *testing.T) {
	s := New(setupTestDB(t))
	ctx := context.Background()
	tournament := createTestTournament(t, s, bracket.TournamentOngoing)
	m := createTestMatch(t, s, tournament.ID, 1, 0, nil, nil)

	newDispute := func() *bracket.Dispute {
		return &bracket.Dispute{ID: uuid.New(), MatchID: m.ID, FiledBy: "2", Reason: "wrong score", Status: bracket.DisputeOpen, CreatedAt: time.Now().UTC()}
	}

	first := newDispute()
	require.NoError(t, s.CreateDispute(ctx, first))
	assert.ErrorIs(t, s.CreateDispute(ctx, newDispute()), apperr.ErrConflict)

	require.NoError(t, s.TransitionDispute(ctx, first.ID, []bracket.DisputeStatus{bracket.DisputeOpen}, bracket.DisputeUnderReview, nil))
	assert.ErrorIs(t, s.CreateDispute(ctx, newDispute()), apperr.ErrConflict)

	response := "score confirmed by replay"
	resolution := &Resolution{ResolvedBy: testOrganizerID, Response: &response, ResolvedAt: time.Now().UTC()}
	active := []bracket.DisputeStatus{bracket.DisputeOpen, bracket.DisputeUnderReview}
	require.NoError(t, s.TransitionDispute(ctx, first.ID, active, bracket.DisputeRejected, resolution))
	assert.ErrorIs(t, s.TransitionDispute(ctx, first.ID, active, bracket.DisputeResolved, resolution), apperr.ErrInvalidState)

	fetched, err := s.GetDispute(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.DisputeRejected, fetched.Status)
	assert.Equal(t, testOrganizerID, *fetched.ResolvedBy)
	assert.Equal(t, response, *fetched.Response)
	assert.NotNil(t, fetched.ResolvedAt)

	// Terminal disputes free the match for a new one
	require.NoError(t, s.CreateDispute(ctx, newDispute()))

	disputes, err := s.ListDisputes(ctx, m.ID)
	require.NoError(t, err)
	assert.Len(t, disputes, 2)
}

func TestJobClaimsAreExclusive(t *testing.T) {
	s := New(setupTestDB(t))
	ctx := context.Background()
	tournament := createTestTournament(t, s, bracket.TournamentOngoing)
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		job, err := jobs.New(jobs.KindMatchReady, &tournament.ID, jobs.Announcement{Title: "Match ready"}, now, now.Add(-time.Minute), 3)
		require.NoError(t, err)
		require.NoError(t, s.EnqueueJob(ctx, job))
	}

	first, err := s.ClaimJobs(ctx, "worker-a", now, now.Add(time.Minute), 2)
	require.NoError(t, err)
	assert.Len(t, first, 2)
	for _, job := range first {
		assert.Equal(t, jobs.StatusRunning, job.Status)
		assert.Equal(t, 1, job.Attempts)
		assert.Equal(t, "worker-a", *job.ClaimedBy)
	}

	second, err := s.ClaimJobs(ctx, "worker-b", now, now.Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, second, 1)

	// Worker b cannot settle a job held by worker a
	assert.ErrorIs(t, s.CompleteJob(ctx, first[0].ID, "worker-b", now), jobs.ErrLeaseLost)
	require.NoError(t, s.CompleteJob(ctx, first[0].ID, "worker-a", now))
	require.NoError(t, s.RetryJob(ctx, first[1].ID, "worker-a", now.Add(time.Hour), "discord down", now))
	require.NoError(t, s.FailJob(ctx, second[0].ID, "worker-b", "bad payload", now))

	// After the lease runs out nothing is left to reclaim: every job was settled
	later := now.Add(2 * time.Minute)
	again, err := s.ClaimJobs(ctx, "worker-c", later, later.Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, again)

	purged, err := s.PurgeJobs(ctx, later)
	require.NoError(t, err)
	assert.Equal(t, int64(2), purged)

	remaining, err := s.ListJobs(ctx, tournament.ID)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, jobs.StatusQueued, remaining[0].Status)
	assert.Equal(t, "discord down", *remaining[0].LastError)
}

func TestJobLeaseExpiryAndExpiration(t *testing.T) {
	s := New(setupTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	held, err := jobs.New(jobs.KindReminder, nil, jobs.Announcement{Title: "Reminder"}, now, now, 3)
	require.NoError(t, err)
	require.NoError(t, s.EnqueueJob(ctx, held))

	stale, err := jobs.New(jobs.KindReminder, nil, jobs.Announcement{Title: "Too late"}, now, now.Add(time.Minute), 3)
	require.NoError(t, err)
	expiresAt := now.Add(30 * time.Second)
	stale.ExpiresAt = &expiresAt
	require.NoError(t, s.EnqueueJob(ctx, stale))

	claimed, err := s.ClaimJobs(ctx, "worker-a", now, now.Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	later := now.Add(2 * time.Minute)
	expired, err := s.ExpireJobs(ctx, later)
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)

	reclaimed, err := s.ClaimJobs(ctx, "worker-b", later, later.Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, reclaimed, 1)
	assert.Equal(t, held.ID, reclaimed[0].ID)
	assert.Equal(t, 2, reclaimed[0].Attempts)

	assert.ErrorIs(t, s.CompleteJob(ctx, held.ID, "worker-a", later), jobs.ErrLeaseLost)
	require.NoError(t, s.CompleteJob(ctx, held.ID, "worker-b", later))
}

func TestAbandonedJobPastExpiryIsNotReclaimed(t *testing.T) {
	s := New(setupTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	job, err := jobs.New(jobs.KindReminder, nil, jobs.Announcement{Title: "Check-in"}, now, now, 3)
	require.NoError(t, err)
	expiresAt := now.Add(90 * time.Second)
	job.ExpiresAt = &expiresAt
	require.NoError(t, s.EnqueueJob(ctx, job))

	claimed, err := s.ClaimJobs(ctx, "worker-a", now, now.Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	// The lease lapsed and so did the grace period
	later := now.Add(2 * time.Minute)
	reclaimed, err := s.ClaimJobs(ctx, "worker-b", later, later.Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, reclaimed)

	expired, err := s.ExpireJobs(ctx, later)
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)
	assert.ErrorIs(t, s.CompleteJob(ctx, job.ID, "worker-a", later), jobs.ErrLeaseLost)
}
