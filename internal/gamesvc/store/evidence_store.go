package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/avvvet/assassins-services/internal/gamesvc/models"
)

const EvidenceBucket = "evidence"

var ErrEvidenceNotFound = errors.New("evidence not found")

// EvidenceStore keeps claim evidence in a GridFS bucket. Deadlines live on
// the bucket, so every call opens its own.
type EvidenceStore struct {
	db *mongo.Database
}

func NewEvidenceStore(db *mongo.Database) (*EvidenceStore, error) {
	if _, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(EvidenceBucket)); err != nil {
		return nil, fmt.Errorf("failed to open gridfs bucket: %w", err)
	}
	return &EvidenceStore{db: db}, nil
}

func (s *EvidenceStore) bucket(ctx context.Context, write bool) (*gridfs.Bucket, error) {
	bucket, err := gridfs.NewBucket(s.db, options.GridFSBucket().SetName(EvidenceBucket))
	if err != nil {
		return nil, fmt.Errorf("failed to open gridfs bucket: %w", err)
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		return bucket, nil
	}
	if write {
		err = bucket.SetWriteDeadline(deadline)
	} else {
		err = bucket.SetReadDeadline(deadline)
	}
	if err != nil {
		return nil, err
	}
	return bucket, nil
}

// Save streams r into the bucket and returns the stored file id.
func (s *EvidenceStore) Save(ctx context.Context, meta models.Evidence, r io.Reader) (string, error) {
	bucket, err := s.bucket(ctx, true)
	if err != nil {
		return "", err
	}

	opts := options.GridFSUpload().SetMetadata(bson.D{
		{Key: "gameId", Value: meta.GameID},
		{Key: "uploaderUserId", Value: meta.UploaderID},
		{Key: "contentType", Value: meta.ContentType},
	})
	id, err := bucket.UploadFromStream(meta.Filename, r, opts)
	if err != nil {
		return "", fmt.Errorf("failed to upload evidence: %w", err)
	}
	return id.Hex(), nil
}

// Open returns a reader over the stored file. The caller closes it.
func (s *EvidenceStore) Open(ctx context.Context, fileID string) (io.ReadCloser, *models.Evidence, error) {
	oid, err := primitive.ObjectIDFromHex(fileID)
	if err != nil {
		return nil, nil, ErrEvidenceNotFound
	}
	bucket, err := s.bucket(ctx, false)
	if err != nil {
		return nil, nil, err
	}

	stream, err := bucket.OpenDownloadStream(oid)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, nil, ErrEvidenceNotFound
		}
		return nil, nil, fmt.Errorf("failed to open evidence %s: %w", fileID, err)
	}

	file := stream.GetFile()
	meta := &models.Evidence{
		ID:         fileID,
		Filename:   file.Name,
		Size:       file.Length,
		UploadedAt: file.UploadDate.UTC().Truncate(time.Millisecond),
	}
	if file.Metadata != nil {
		meta.GameID = lookupString(file.Metadata, "gameId")
		meta.UploaderID = lookupString(file.Metadata, "uploaderUserId")
		meta.ContentType = lookupString(file.Metadata, "contentType")
	}
	return stream, meta, nil
}

func lookupString(raw bson.Raw, key string) string {
	v, err := raw.LookupErr(key)
	if err != nil {
		return ""
	}
	s, _ := v.StringValueOK()
	return s
}
