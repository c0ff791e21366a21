package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/avvvet/assassins-services/internal/comm"
	"github.com/avvvet/assassins-services/internal/docstore"
	"github.com/avvvet/assassins-services/internal/gamesvc/models"
	"github.com/avvvet/assassins-services/internal/gamesvc/store"
)

const maxAnnouncementLength = 2000

type AnnouncementService struct {
	db       docstore.Store
	stores   *store.Stores
	notifier Notifier
	now      func() time.Time
	newID    func() string
}

func NewAnnouncementService(db docstore.Store, notifier Notifier) *AnnouncementService {
	if notifier == nil {
		notifier = NopNotifier()
	}
	return &AnnouncementService{
		db:       db,
		stores:   store.NewStores(db),
		notifier: notifier,
		now:      utcNow,
		newID:    newID,
	}
}

func checkContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyContent
	}
	if len([]rune(content)) > maxAnnouncementLength {
		return "", validationError("content exceeds %d characters", maxAnnouncementLength)
	}
	return content, nil
}

// Create posts an admin announcement to an active game's feed.
func (s *AnnouncementService) Create(ctx context.Context, gameID, actorUserID, content string) (*models.Announcement, error) {
	content, err := checkContent(content)
	if err != nil {
		return nil, err
	}

	var a *models.Announcement
	err = runTx(ctx, s.db, func(ctx context.Context, st *store.Stores) error {
		game, err := loadGame(ctx, st, gameID)
		if err != nil {
			return err
		}
		if _, err := requireAdmin(ctx, st, gameID, actorUserID); err != nil {
			return err
		}
		if game.Status != models.GameStatusActive {
			return ErrGameNotActive
		}

		a = &models.Announcement{
			ID:        s.newID(),
			GameID:    gameID,
			Content:   content,
			Kind:      models.AnnouncementAdmin,
			Timestamp: s.now(),
		}
		return st.Announcements.Save(ctx, a)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, announcementEvent(comm.EventAnnouncement, a))
	return a, nil
}

func (s *AnnouncementService) Edit(ctx context.Context, id, actorUserID, content string) (*models.Announcement, error) {
	content, err := checkContent(content)
	if err != nil {
		return nil, err
	}

	var a *models.Announcement
	err = runTx(ctx, s.db, func(ctx context.Context, st *store.Stores) error {
		var err error
		if a, err = loadAnnouncement(ctx, st, id); err != nil {
			return err
		}
		if _, err := requireAdmin(ctx, st, a.GameID, actorUserID); err != nil {
			return err
		}

		now := s.now()
		a.Content = content
		a.EditedAt = &now
		return st.Announcements.Save(ctx, a)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, announcementEvent(comm.EventAnnouncementUpdated, a))
	return a, nil
}

func (s *AnnouncementService) Delete(ctx context.Context, id, actorUserID string) error {
	var a *models.Announcement
	err := runTx(ctx, s.db, func(ctx context.Context, st *store.Stores) error {
		var err error
		if a, err = loadAnnouncement(ctx, st, id); err != nil {
			return err
		}
		if _, err := requireAdmin(ctx, st, a.GameID, actorUserID); err != nil {
			return err
		}
		return st.Announcements.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	ev := announcementEvent(comm.EventAnnouncementDeleted, a)
	ev.Content = ""
	ev.Timestamp = s.now()
	s.notifier.Notify(ctx, ev)
	return nil
}

// List returns a game's feed newest first; limit <= 0 returns everything.
func (s *AnnouncementService) List(ctx context.Context, gameID string, limit int) ([]*models.Announcement, error) {
	if _, err := loadGame(ctx, s.stores, gameID); err != nil {
		return nil, err
	}
	return s.stores.Announcements.ListByGameID(ctx, gameID, limit)
}

func loadAnnouncement(ctx context.Context, s *store.Stores, id string) (*models.Announcement, error) {
	a, err := s.Announcements.GetByID(ctx, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrAnnouncementNotFound
	}
	return a, err
}

func announcementEvent(typ string, a *models.Announcement) comm.GameEvent {
	ts := a.Timestamp
	if a.EditedAt != nil {
		ts = *a.EditedAt
	}
	return comm.GameEvent{
		Type:           typ,
		GameID:         a.GameID,
		AnnouncementID: a.ID,
		Content:        a.Content,
		Timestamp:      ts,
	}
}
