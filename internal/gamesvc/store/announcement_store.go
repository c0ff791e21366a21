package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/avvvet/assassins-services/internal/docstore"
	"github.com/avvvet/assassins-services/internal/gamesvc/models"
)

type AnnouncementStore struct {
	db docstore.Reader
	w  writer
}

func NewAnnouncementStore(db docstore.Store) *AnnouncementStore {
	return &AnnouncementStore{db: db, w: db}
}

func (s *AnnouncementStore) GetByID(ctx context.Context, id string) (*models.Announcement, error) {
	a := &models.Announcement{}
	if err := s.db.Get(ctx, AnnouncementsCollection, id, a); err != nil {
		return nil, fmt.Errorf("failed to get announcement %s: %w", id, err)
	}
	return a, nil
}

// ListByGameID returns the game's announcements newest first. limit <= 0
// returns all of them.
func (s *AnnouncementStore) ListByGameID(ctx context.Context, gameID string, limit int) ([]*models.Announcement, error) {
	var list []models.Announcement
	if err := s.db.Query(ctx, AnnouncementsCollection, docstore.Filter{"gameId": gameID}, &list); err != nil {
		return nil, fmt.Errorf("failed to list announcements for game %s: %w", gameID, err)
	}

	out := make([]*models.Announcement, 0, len(list))
	for i := range list {
		out = append(out, &list[i])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *AnnouncementStore) Save(ctx context.Context, a *models.Announcement) error {
	a.Timestamp = normalizeTime(a.Timestamp)
	a.EditedAt = normalizeTimePtr(a.EditedAt)
	if err := s.w.Set(ctx, AnnouncementsCollection, a.ID, a); err != nil {
		return fmt.Errorf("failed to save announcement %s: %w", a.ID, err)
	}
	return nil
}

func (s *AnnouncementStore) Delete(ctx context.Context, id string) error {
	if err := s.w.Delete(ctx, AnnouncementsCollection, id); err != nil {
		return fmt.Errorf("failed to delete announcement %s: %w", id, err)
	}
	return nil
}
