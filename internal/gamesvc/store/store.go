package store

import (
	"context"
	"time"

	"github.com/avvvet/assassins-services/internal/docstore"
)

// Collection names.
const (
	GamesCollection         = "games"
	PlayersCollection       = "players"
	UsersCollection         = "users"
	AnnouncementsCollection = "announcements"
)

// writer is satisfied by both docstore.Store and docstore.Tx, so every store
// works the same inside and outside a transaction.
type writer interface {
	Set(ctx context.Context, collection, id string, doc any) error
	Delete(ctx context.Context, collection, id string) error
}

// Stores bundles the entity stores bound to one reader/writer.
type Stores struct {
	Games         *GameStore
	Players       *PlayerStore
	Users         *UserStore
	Announcements *AnnouncementStore
}

func NewStores(db docstore.Store) *Stores {
	return bind(db, db)
}

// WithTx returns stores whose reads and writes go through tx.
func WithTx(tx docstore.Tx) *Stores {
	return bind(tx, tx)
}

func bind(r docstore.Reader, w writer) *Stores {
	return &Stores{
		Games:         &GameStore{db: r, w: w},
		Players:       &PlayerStore{db: r, w: w},
		Users:         &UserStore{db: r, w: w},
		Announcements: &AnnouncementStore{db: r, w: w},
	}
}

// normalizeTime stores instants in UTC at millisecond precision, the
// resolution every backend can round-trip.
func normalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC().Truncate(time.Millisecond)
}

func normalizeTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	n := normalizeTime(*t)
	return &n
}
