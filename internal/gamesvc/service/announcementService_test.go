package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/assassins-services/internal/comm"
	"github.com/avvvet/assassins-services/internal/gamesvc/models"
)

func TestAnnouncements(t *testing.T) {
	f := newFixture(t)
	game, ps := f.setupGame("alice", "bob")

	_, err := f.feed.Create(f.ctx, game.ID, adminUser, "welcome")
	assert.ErrorIs(t, err, ErrGameNotActive)

	f.startWithRing(game.ID, ps[0], ps[1])

	_, err = f.feed.Create(f.ctx, game.ID, "u-alice", "hi")
	assert.ErrorIs(t, err, ErrNotAdmin)

	_, err = f.feed.Create(f.ctx, game.ID, adminUser, " \n ")
	assert.ErrorIs(t, err, ErrEmptyContent)

	_, err = f.feed.Create(f.ctx, game.ID, adminUser, strings.Repeat("x", maxAnnouncementLength+1))
	assert.ErrorIs(t, err, ErrValidation)

	first, err := f.feed.Create(f.ctx, game.ID, adminUser, " No kills in the library ")
	require.NoError(t, err)
	assert.Equal(t, "No kills in the library", first.Content)
	assert.Equal(t, models.AnnouncementAdmin, first.Kind)

	second, err := f.feed.Create(f.ctx, game.ID, adminUser, "Safe zone: cafeteria")
	require.NoError(t, err)

	list, err := f.feed.List(f.ctx, game.ID, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)

	edited, err := f.feed.Edit(f.ctx, first.ID, adminUser, "No kills in the library or gym")
	require.NoError(t, err)
	assert.NotNil(t, edited.EditedAt)

	_, err = f.feed.Edit(f.ctx, first.ID, "u-bob", "hacked")
	assert.ErrorIs(t, err, ErrNotAdmin)

	require.NoError(t, f.feed.Delete(f.ctx, second.ID, adminUser))
	err = f.feed.Delete(f.ctx, second.ID, adminUser)
	assert.ErrorIs(t, err, ErrAnnouncementNotFound)

	list, err = f.feed.List(f.ctx, game.ID, 5)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "No kills in the library or gym", list[0].Content)

	_, err = f.feed.List(f.ctx, "missing", 0)
	assert.ErrorIs(t, err, ErrGameNotFound)

	assert.Equal(t, []string{
		comm.EventAnnouncement,
		comm.EventAnnouncement,
		comm.EventAnnouncementUpdated,
		comm.EventAnnouncementDeleted,
	}, f.events.types())
}
