package service

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/avvvet/assassins-services/internal/gamesvc/models"
)

// RingAssembler links the living players of a game into a single target
// cycle.
type RingAssembler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRingAssembler uses rng for shuffling; nil seeds from the clock.
func NewRingAssembler(rng *rand.Rand) *RingAssembler {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &RingAssembler{rng: rng}
}

// Assemble overwrites the target of every player in living so that, in a
// uniformly shuffled order, player i targets player i+1 and the last
// targets the first.
func (a *RingAssembler) Assemble(game *models.Game, living []*models.Player) error {
	if game.Status != models.GameStatusSetup {
		return ErrAlreadyStarted
	}
	if len(living) < 2 {
		return ErrInsufficientPlayers
	}

	order := make([]*models.Player, len(living))
	copy(order, living)
	// stable input order so a seeded rng yields a reproducible ring
	sort.Slice(order, func(i, j int) bool {
		if order[i].JoinedAt.Equal(order[j].JoinedAt) {
			return order[i].ID < order[j].ID
		}
		return order[i].JoinedAt.Before(order[j].JoinedAt)
	})

	a.mu.Lock()
	for i := len(order) - 1; i > 0; i-- {
		j := a.rng.Intn(i + 1)
		order[i], order[j] = order[j], order[i]
	}
	a.mu.Unlock()

	for i, p := range order {
		p.SetTarget(order[(i+1)%len(order)].ID)
	}
	return nil
}
