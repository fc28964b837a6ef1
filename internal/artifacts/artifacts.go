// Package artifacts keeps binary objects next to the document records:
// exported PDFs, raw intake uploads and uploaded image assets. MinIO/S3 is
// used when configured, otherwise objects live in process memory.
package artifacts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dharsanguruparan/SignDesk/internal/config"
)

// Kind selects the bucket an object belongs to.
type Kind string

const (
	KindRaw      Kind = "raw"
	KindArtifact Kind = "artifact"
	KindAsset    Kind = "asset"
)

var ErrNotFound = errors.New("object not found")

// Object is a stored blob.
type Object struct {
	Data        []byte
	ContentType string
}

// Store is implemented by the S3 and in-memory backends.
type Store interface {
	EnsureBuckets(ctx context.Context) error
	Put(ctx context.Context, kind Kind, key string, data []byte, contentType string) error
	Get(ctx context.Context, kind Kind, key string) (Object, error)
	// PresignURL returns a time-limited GET URL, or "" when the backend cannot
	// hand out direct links.
	PresignURL(ctx context.Context, kind Kind, key string) (string, error)
}

// NewKey builds an object key of the form <prefix>/<uuid><ext>.
func NewKey(prefix, fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	return prefix + "/" + uuid.NewString() + ext
}

// Open returns the S3 backend when cfg has an endpoint and memory otherwise.
func Open(cfg config.S3Config) (Store, error) {
	if !cfg.Enabled() {
		return NewMemory(), nil
	}
	return NewS3(cfg)
}

// S3 wraps MinIO/S3 interactions.
type S3 struct {
	client  *minio.Client
	buckets map[Kind]string
	region  string
	ttl     time.Duration
}

// NewS3 creates a MinIO client from cfg.
func NewS3(cfg config.S3Config) (*S3, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &S3{
		client: client,
		buckets: map[Kind]string{
			KindRaw:      cfg.RawBucket,
			KindArtifact: cfg.ArtifactBucket,
			KindAsset:    cfg.AssetBucket,
		},
		region: cfg.Region,
		ttl:    cfg.PresignTTL,
	}, nil
}

func (s *S3) bucket(kind Kind) (string, error) {
	b, ok := s.buckets[kind]
	if !ok || b == "" {
		return "", fmt.Errorf("no bucket configured for %s objects", kind)
	}
	return b, nil
}

// EnsureBuckets makes sure every bucket exists before use.
func (s *S3) EnsureBuckets(ctx context.Context) error {
	for _, kind := range []Kind{KindRaw, KindArtifact, KindAsset} {
		bucket, err := s.bucket(kind)
		if err != nil {
			return err
		}
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
				return fmt.Errorf("make bucket %s: %w", bucket, err)
			}
		}
	}
	return nil
}

func (s *S3) Put(ctx context.Context, kind Kind, key string, data []byte, contentType string) error {
	bucket, err := s.bucket(kind)
	if err != nil {
		return err
	}
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := s.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), opts); err != nil {
		return fmt.Errorf("upload %s object: %w", kind, err)
	}
	return nil
}

func (s *S3) Get(ctx context.Context, kind Kind, key string) (Object, error) {
	bucket, err := s.bucket(kind)
	if err != nil {
		return Object{}, err
	}
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return Object{}, fmt.Errorf("get %s object: %w", kind, err)
	}
	defer obj.Close()
	info, err := obj.Stat()
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return Object{}, ErrNotFound
		}
		return Object{}, fmt.Errorf("stat %s object: %w", kind, err)
	}
	buf, err := io.ReadAll(obj)
	if err != nil {
		return Object{}, fmt.Errorf("read %s object: %w", kind, err)
	}
	return Object{Data: buf, ContentType: info.ContentType}, nil
}

// PresignURL returns a signed GET URL valid for the configured TTL.
func (s *S3) PresignURL(ctx context.Context, kind Kind, key string) (string, error) {
	bucket, err := s.bucket(kind)
	if err != nil {
		return "", err
	}
	u, err := s.client.PresignedGetObject(ctx, bucket, key, s.ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s object: %w", kind, err)
	}
	return u.String(), nil
}

// Memory keeps objects in a map. Contents are lost on restart.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]Object
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string]Object)}
}

func memKey(kind Kind, key string) string { return string(kind) + "/" + key }

func (m *Memory) EnsureBuckets(context.Context) error { return nil }

func (m *Memory) Put(_ context.Context, kind Kind, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[memKey(kind, key)] = Object{Data: append([]byte(nil), data...), ContentType: contentType}
	return nil
}

func (m *Memory) Get(_ context.Context, kind Kind, key string) (Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[memKey(kind, key)]
	if !ok {
		return Object{}, ErrNotFound
	}
	return Object{Data: append([]byte(nil), obj.Data...), ContentType: obj.ContentType}, nil
}

func (m *Memory) PresignURL(context.Context, Kind, string) (string, error) {
	return "", nil
}
