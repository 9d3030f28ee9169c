// Copyright 2025 Certen Protocol

package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/storage"

	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/hyptypes"
)

// GCSStore is the Google Cloud Storage-backed checkpoint store.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
}

func NewGCSStore(client *storage.Client, bucket, prefix string) *GCSStore {
	return &GCSStore{client: client, bucket: bucket, prefix: prefix}
}

func (s *GCSStore) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

func (s *GCSStore) checkpointKey(index uint32) string {
	return s.key(fmt.Sprintf("checkpoint_%d.json", index))
}
func (s *GCSStore) latestIndexKey() string  { return s.key("checkpoint_latest_index.json") }
func (s *GCSStore) announcementKey() string { return s.key("announcement.json") }

func (s *GCSStore) readObject(ctx context.Context, name string, v any) (bool, error) {
	obj := s.client.Bucket(s.bucket).Object(name)
	r, err := obj.NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read object %s: %w", name, err)
	}
	defer r.Close()
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return false, fmt.Errorf("decode object %s: %w", name, err)
	}
	return true, nil
}

func (s *GCSStore) writeObject(ctx context.Context, name string, v any) error {
	obj := s.client.Bucket(s.bucket).Object(name)
	w := obj.NewWriter(ctx)
	w.ContentType = jsonContentType
	if err := json.NewEncoder(w).Encode(v); err != nil {
		_ = w.Close()
		return fmt.Errorf("encode object %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("write object %s: %w", name, err)
	}
	return nil
}

func (s *GCSStore) LatestIndex(ctx context.Context) (uint32, bool, error) {
	var idx uint32
	found, err := s.readObject(ctx, s.latestIndexKey(), &idx)
	return idx, found, err
}

func (s *GCSStore) FetchCheckpoint(ctx context.Context, index uint32) (*hyptypes.SignedCheckpoint, error) {
	var sc hyptypes.SignedCheckpoint
	found, err := s.readObject(ctx, s.checkpointKey(index), &sc)
	if err != nil || !found {
		return nil, err
	}
	return &sc, nil
}

func (s *GCSStore) WriteCheckpoint(ctx context.Context, signed hyptypes.SignedCheckpoint) error {
	if err := s.writeObject(ctx, s.checkpointKey(signed.Checkpoint.Index), signed); err != nil {
		return err
	}
	cur, found, err := s.LatestIndex(ctx)
	if err != nil {
		return err
	}
	if found && signed.Checkpoint.Index <= cur {
		return nil
	}
	return s.writeObject(ctx, s.latestIndexKey(), signed.Checkpoint.Index)
}

func (s *GCSStore) WriteAnnouncement(ctx context.Context, ann Announcement) error {
	return s.writeObject(ctx, s.announcementKey(), ann)
}

func (s *GCSStore) AnnouncementLocation() string {
	return fmt.Sprintf("gs://%s/%s", s.bucket, s.announcementKey())
}
