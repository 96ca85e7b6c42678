package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/AdamBeresnev/clanhub/internal/bracket"
	"github.com/AdamBeresnev/clanhub/internal/db"
	"github.com/AdamBeresnev/clanhub/internal/jobs"
	"github.com/AdamBeresnev/clanhub/internal/live"
	"github.com/AdamBeresnev/clanhub/internal/store"
	users "github.com/AdamBeresnev/clanhub/internal/user"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

var (
	organizer = users.User{ID: "100000000000000001", Role: users.RolePlayer}
	admin     = users.User{ID: "100000000000000002", Role: users.RoleAdmin}
	outsider  = users.User{ID: "100000000000000003", Role: users.RolePlayer}
)

// captain returns the player who registers the i-th test team.
func captain(i int) users.User {
	return users.User{ID: fmt.Sprintf("2000000000000000%02d", i), Role: users.RolePlayer}
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []live.Event
}

func (b *recordingBroadcaster) Broadcast(event live.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBroadcaster) count(eventType live.EventType) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

type testEnv struct {
	repo        *store.SQLStore
	clock       *clockwork.FakeClock
	events      *recordingBroadcaster
	tournaments *TournamentService
	teams       *TeamService
	matches     *MatchService
	disputes    *DisputeService
}

// setupTestEnv wires the services over an in-memory SQLite database with migrations applied
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	database, err := db.Open(context.Background(), db.DriverSQLite, "file:"+uuid.NewString()+"?mode=memory&cache=shared&_foreign_keys=1")
	require.NoError(t, err, "Failed to open in-memory DB")
	require.NoError(t, db.RunMigrations(database), "Failed to apply migrations")
	t.Cleanup(func() { database.Close() })

	repo := store.New(database)
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC))
	events := &recordingBroadcaster{}
	notifier := NewNotifier(events, clock, slog.New(slog.NewTextHandler(io.Discard, nil)), jobs.DefaultMaxAttempts)

	return &testEnv{
		repo:        repo,
		clock:       clock,
		events:      events,
		tournaments: NewTournamentService(repo, notifier),
		teams:       NewTeamService(repo, notifier),
		matches:     NewMatchService(repo, notifier),
		disputes:    NewDisputeService(repo, notifier),
	}
}

// openTournament creates a tournament with registration open.
func (e *testEnv) openTournament(t *testing.T, format bracket.Format) *bracket.Tournament {
	t.Helper()
	ctx := context.Background()

	created, err := e.tournaments.CreateTournament(ctx, organizer, CreateTournamentInput{
		Name:         "Friday Cup",
		Format:       format,
		TeamCapacity: 16,
		TeamSize:     5,
	})
	require.NoError(t, err)

	opened, err := e.tournaments.OpenRegistration(ctx, organizer, created.ID)
	require.NoError(t, err)
	return opened
}

// registerTeams registers n unseeded teams captained by captain(0)..captain(n-1). Registration order is seed order.
func (e *testEnv) registerTeams(t *testing.T, tournamentID uuid.UUID, n int) []bracket.Team {
	t.Helper()

	teams := make([]bracket.Team, 0, n)
	for i := 0; i < n; i++ {
		view, err := e.teams.CreateTeam(context.Background(), captain(i), tournamentID, CreateTeamInput{
			Name: fmt.Sprintf("Team %d", i+1),
		})
		require.NoError(t, err)
		teams = append(teams, view.Team)
		e.clock.Advance(time.Second)
	}
	return teams
}

// startTournament opens registration, registers n teams and starts play.
func (e *testEnv) startTournament(t *testing.T, format bracket.Format, n int) (*bracket.Tournament, []bracket.Team) {
	t.Helper()

	tournament := e.openTournament(t, format)
	teams := e.registerTeams(t, tournament.ID, n)
	started, err := e.tournaments.Start(context.Background(), organizer, tournament.ID)
	require.NoError(t, err)
	return started, teams
}

func (e *testEnv) matchAt(t *testing.T, tournamentID uuid.UUID, round, position int) *bracket.Match {
	t.Helper()
	m, err := e.repo.GetMatchAt(context.Background(), tournamentID, round, position)
	require.NoError(t, err)
	return m
}

func (e *testEnv) team(t *testing.T, id uuid.UUID) *bracket.Team {
	t.Helper()
	team, err := e.repo.GetTeam(context.Background(), id)
	require.NoError(t, err)
	return team
}

func (e *testEnv) tournament(t *testing.T, id uuid.UUID) *bracket.Tournament {
	t.Helper()
	tournament, err := e.repo.GetTournament(context.Background(), id)
	require.NoError(t, err)
	return tournament
}

// captainOf finds the test captain of a team by its captain id.
func captainOf(team *bracket.Team) users.User {
	return users.User{ID: team.CaptainID, Role: users.RolePlayer}
}

// play reports a score by team A's captain and has team B's captain verify it.
func (e *testEnv) play(t *testing.T, m *bracket.Match, scoreA, scoreB int) *bracket.Match {
	t.Helper()
	ctx := context.Background()

	a, b := e.team(t, *m.TeamAID), e.team(t, *m.TeamBID)
	_, err := e.matches.Report(ctx, captainOf(a), m.ID, scoreA, scoreB)
	require.NoError(t, err)
	verified, err := e.matches.Verify(ctx, captainOf(b), m.ID)
	require.NoError(t, err)
	return verified
}

func (e *testEnv) jobKinds(t *testing.T, tournamentID uuid.UUID) map[jobs.Kind]int {
	t.Helper()
	list, err := e.repo.ListJobs(context.Background(), tournamentID)
	require.NoError(t, err)

	kinds := map[jobs.Kind]int{}
	for _, j := range list {
		kinds[j.Kind]++
	}
	return kinds
}
