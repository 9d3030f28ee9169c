// Copyright 2025 Certen Protocol

package checkpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/hyptypes"
)

const jsonContentType = "application/json"

// S3Store is the S3-backed checkpoint store validators announce when
// running in AWS.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewS3Store(client *s3.Client, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3Store) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

func (s *S3Store) checkpointKey(index uint32) string {
	return s.key(fmt.Sprintf("checkpoint_%d.json", index))
}
func (s *S3Store) latestIndexKey() string  { return s.key("checkpoint_latest_index.json") }
func (s *S3Store) announcementKey() string { return s.key("announcement.json") }

func isNoSuchKey(err error) bool {
	var nsk *types.NoSuchKey
	return errors.As(err, &nsk)
}

func (s *S3Store) getObject(ctx context.Context, key string, v any) (bool, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("get object %s: %w", key, err)
	}
	defer out.Body.Close()
	if err := json.NewDecoder(out.Body).Decode(v); err != nil {
		return false, fmt.Errorf("decode object %s: %w", key, err)
	}
	return true, nil
}

func (s *S3Store) putObject(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal object %s: %w", key, err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(b),
		ContentType: aws.String(jsonContentType),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) LatestIndex(ctx context.Context) (uint32, bool, error) {
	var idx uint32
	found, err := s.getObject(ctx, s.latestIndexKey(), &idx)
	return idx, found, err
}

func (s *S3Store) FetchCheckpoint(ctx context.Context, index uint32) (*hyptypes.SignedCheckpoint, error) {
	var sc hyptypes.SignedCheckpoint
	found, err := s.getObject(ctx, s.checkpointKey(index), &sc)
	if err != nil || !found {
		return nil, err
	}
	return &sc, nil
}

func (s *S3Store) WriteCheckpoint(ctx context.Context, signed hyptypes.SignedCheckpoint) error {
	if err := s.putObject(ctx, s.checkpointKey(signed.Checkpoint.Index), signed); err != nil {
		return err
	}
	cur, found, err := s.LatestIndex(ctx)
	if err != nil {
		return err
	}
	if found && signed.Checkpoint.Index <= cur {
		return nil
	}
	return s.putObject(ctx, s.latestIndexKey(), signed.Checkpoint.Index)
}

func (s *S3Store) WriteAnnouncement(ctx context.Context, ann Announcement) error {
	return s.putObject(ctx, s.announcementKey(), ann)
}

func (s *S3Store) AnnouncementLocation() string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.announcementKey())
}
