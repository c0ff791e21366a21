package service

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/avvvet/assassins-services/internal/comm"
	"github.com/avvvet/assassins-services/internal/docstore"
	"github.com/avvvet/assassins-services/internal/gamesvc/models"
	"github.com/avvvet/assassins-services/internal/gamesvc/store"
)

const adminUser = "u-admin"

type recorder struct {
	mu     sync.Mutex
	events []comm.GameEvent
}

func (r *recorder) Notify(_ context.Context, ev comm.GameEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// clock hands out strictly increasing instants so ordering by timestamp is
// deterministic.
type clock struct {
	mu  sync.Mutex
	cur time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Second)
	return c.cur
}

type fakeLeaderboard struct {
	mu      sync.Mutex
	counts  map[string]int
	rebuilt []models.User
	err     error
}

func newFakeLeaderboard() *fakeLeaderboard {
	return &fakeLeaderboard{counts: make(map[string]int)}
}

func (l *fakeLeaderboard) IncrementEliminations(_ context.Context, userID, _ string, by int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts[userID] += by
	return l.err
}

func (l *fakeLeaderboard) Top(_ context.Context, limit int) ([]models.LeaderboardEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	users := make([]models.User, 0, len(l.counts))
	for id, n := range l.counts {
		users = append(users, models.User{ID: id, Stats: models.Stats{Eliminations: n}})
	}
	return rankUsers(users, limit), nil
}

func (l *fakeLeaderboard) Rebuild(_ context.Context, users []models.User) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rebuilt = users
	return l.err
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	db       *docstore.MemoryStore
	stores   *store.Stores
	events   *recorder
	board    *fakeLeaderboard
	games    *GameService
	claims   *EliminationService
	disputes *DisputeService
	feed     *AnnouncementService
	users    *UserService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := docstore.NewMemoryStore(docstore.RetryConfig{
		MaxRetries: 20,
		MinBackoff: time.Millisecond,
		MaxBackoff: 5 * time.Millisecond,
	})
	events := &recorder{}
	board := newFakeLeaderboard()
	clk := &clock{cur: time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)}
	f := &fixture{
		t:        t,
		ctx:      context.Background(),
		db:       db,
		stores:   store.NewStores(db),
		events:   events,
		board:    board,
		games:    NewGameService(db, NewRingAssembler(rand.New(rand.NewSource(7))), events),
		claims:   NewEliminationService(db, events, board),
		disputes: NewDisputeService(db, events),
		feed:     NewAnnouncementService(db, events),
		users:    NewUserService(db, board),
	}
	f.games.now = clk.now
	f.claims.now = clk.now
	f.disputes.now = clk.now
	f.feed.now = clk.now
	f.users.now = clk.now
	return f
}

func actor(name string) Actor {
	return Actor{UserID: "u-" + name, Username: name}
}

// setupGame creates a game run by a non-playing admin and joins one player
// per name. Players are returned in join order.
func (f *fixture) setupGame(names ...string) (*models.Game, []*models.Player) {
	f.t.Helper()
	game, _, err := f.games.CreateGame(f.ctx, Actor{UserID: adminUser, Username: "admin"}, CreateGameInput{Title: "office"})
	require.NoError(f.t, err)

	players := make([]*models.Player, 0, len(names))
	for _, n := range names {
		p, err := f.games.JoinGame(f.ctx, actor(n), game.ID, JoinGameInput{PlayerName: n})
		require.NoError(f.t, err)
		players = append(players, p)
	}
	return game, players
}

// startWithRing starts the game and then rewires targets to follow ring
// order, so tests can reason about a known cycle.
func (f *fixture) startWithRing(gameID string, ring ...*models.Player) {
	f.t.Helper()
	_, err := f.games.Start(f.ctx, gameID, adminUser)
	require.NoError(f.t, err)

	for i, p := range ring {
		cur := f.player(p.ID)
		cur.SetTarget(ring[(i+1)%len(ring)].ID)
		require.NoError(f.t, f.stores.Players.SavePlayer(f.ctx, cur))
	}
	f.events.reset()
}

func (f *fixture) player(id string) *models.Player {
	f.t.Helper()
	p, err := f.stores.Players.GetPlayerByID(f.ctx, id)
	require.NoError(f.t, err)
	return p
}

func (f *fixture) user(id string) *models.User {
	f.t.Helper()
	u, err := f.stores.Users.GetByID(f.ctx, id)
	require.NoError(f.t, err)
	return u
}

func (f *fixture) game(id string) *models.Game {
	f.t.Helper()
	g, err := f.stores.Games.GetGameByID(f.ctx, id)
	require.NoError(f.t, err)
	return g
}

func (f *fixture) claim(gameID, name string) *Claim {
	f.t.Helper()
	c, err := f.claims.SubmitClaim(f.ctx, ClaimInput{GameID: gameID, UserID: "u-" + name})
	require.NoError(f.t, err)
	return c
}

// requireSingleCycle asserts the living players' targets form exactly one
// directed cycle covering all of them.
func requireSingleCycle(t *testing.T, living []*models.Player) {
	t.Helper()
	targets := make(map[string]string, len(living))
	targeted := make(map[string]int, len(living))
	for _, p := range living {
		require.NotEmpty(t, p.Target(), "player %s has no target", p.ID)
		require.NotEqual(t, p.ID, p.Target(), "player %s targets itself", p.ID)
		targets[p.ID] = p.Target()
		targeted[p.Target()]++
	}
	for _, p := range living {
		require.Equal(t, 1, targeted[p.ID], "player %s targeted %d times", p.ID, targeted[p.ID])
	}

	start := living[0].ID
	cur := start
	for i := 0; i < len(living); i++ {
		next, ok := targets[cur]
		require.True(t, ok, "target %s is not a living player", cur)
		cur = next
		if cur == start {
			require.Equal(t, len(living)-1, i, "cycle shorter than the ring")
		}
	}
	require.Equal(t, start, cur)
}
