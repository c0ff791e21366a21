package service

import (
	"context"
	"errors"
	"io"
	"mime"
	"path"
	"time"

	"github.com/avvvet/assassins-services/internal/docstore"
	"github.com/avvvet/assassins-services/internal/gamesvc/models"
	"github.com/avvvet/assassins-services/internal/gamesvc/store"
)

const DefaultEvidenceMaxBytes = 50 << 20

var allowedEvidenceTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"video/mp4":  true,
}

// EvidenceStore is the blob storage behind evidence uploads.
type EvidenceStore interface {
	Save(ctx context.Context, meta models.Evidence, r io.Reader) (string, error)
	Open(ctx context.Context, fileID string) (io.ReadCloser, *models.Evidence, error)
}

// EvidenceService stores claim evidence. Uploads happen before, and
// independently of, the claim transaction.
type EvidenceService struct {
	stores   *store.Stores
	files    EvidenceStore
	maxBytes int64
	now      func() time.Time
}

func NewEvidenceService(db docstore.Store, files EvidenceStore, maxBytes int64) *EvidenceService {
	if maxBytes <= 0 {
		maxBytes = DefaultEvidenceMaxBytes
	}
	return &EvidenceService{
		stores:   store.NewStores(db),
		files:    files,
		maxBytes: maxBytes,
		now:      utcNow,
	}
}

func (s *EvidenceService) MaxBytes() int64 { return s.maxBytes }

type UploadInput struct {
	GameID      string
	UserID      string
	Filename    string
	ContentType string
	Size        int64
}

// Upload checks type and size and streams r into blob storage. Only
// living players of an active game may upload.
func (s *EvidenceService) Upload(ctx context.Context, in UploadInput, r io.Reader) (*models.Evidence, error) {
	mediaType, _, err := mime.ParseMediaType(in.ContentType)
	if err != nil || !allowedEvidenceTypes[mediaType] {
		return nil, validationError("unsupported evidence type %q", in.ContentType)
	}
	if in.Size <= 0 {
		return nil, validationError("evidence file is empty")
	}
	if in.Size > s.maxBytes {
		return nil, validationError("evidence exceeds %d bytes", s.maxBytes)
	}

	game, err := loadGame(ctx, s.stores, in.GameID)
	if err != nil {
		return nil, err
	}
	if game.Status != models.GameStatusActive {
		return nil, ErrGameNotActive
	}
	p, err := s.stores.Players.GetPlayerByUser(ctx, in.GameID, in.UserID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrPlayerNotFound
	}
	if err != nil {
		return nil, err
	}
	if !p.IsAlive {
		return nil, ErrKillerEliminated
	}

	meta := models.Evidence{
		GameID:      in.GameID,
		UploaderID:  in.UserID,
		Filename:    path.Base(in.Filename),
		ContentType: mediaType,
		Size:        in.Size,
		UploadedAt:  s.now(),
	}
	id, err := s.files.Save(ctx, meta, io.LimitReader(r, s.maxBytes))
	if err != nil {
		return nil, err
	}
	meta.ID = id
	meta.URL = EvidenceURL(id)
	return &meta, nil
}

// Open returns the stored evidence to a player of the game it was uploaded
// for. The caller closes the reader.
func (s *EvidenceService) Open(ctx context.Context, fileID, userID string) (io.ReadCloser, *models.Evidence, error) {
	rc, meta, err := s.files.Open(ctx, fileID)
	if errors.Is(err, store.ErrEvidenceNotFound) {
		return nil, nil, ErrEvidenceNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	_, err = s.stores.Players.GetPlayerByUser(ctx, meta.GameID, userID)
	if err != nil {
		rc.Close()
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, nil, ErrNotParticipant
		}
		return nil, nil, err
	}

	meta.URL = EvidenceURL(fileID)
	return rc, meta, nil
}

// EvidenceURL is the API path a claim references uploaded evidence by.
func EvidenceURL(fileID string) string {
	return "/v1/evidence/" + fileID
}
