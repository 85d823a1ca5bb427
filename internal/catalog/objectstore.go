package catalog

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// ObjectInfo describes one stored object for latest-version selection.
type ObjectInfo struct {
	Key     string
	Updated time.Time
}

// ObjectStore abstracts the reference-data bucket so the catalog loader and
// the pipeline's output writer can run against an in-memory store in tests.
type ObjectStore interface {
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Read(ctx context.Context, key string) (data []byte, contentEncoding string, err error)
	Write(ctx context.Context, key string, data []byte, contentType string) error
}

// GCSStore is the Google Cloud Storage implementation.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore prefers application-default credentials; explicit JSON can be
// supplied through GCS_CREDENTIALS_JSON for local runs.
func NewGCSStore(ctx context.Context, bucket string) (*GCSStore, error) {
	if bucket == "" {
		return nil, errors.New("catalog bucket is required")
	}
	var opts []option.ClientOption
	if credJSON := strings.TrimSpace(os.Getenv("GCS_CREDENTIALS_JSON")); credJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

func (s *GCSStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	var infos []ObjectInfo
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		infos = append(infos, ObjectInfo{Key: attrs.Name, Updated: attrs.Updated})
	}
	return infos, nil
}

func (s *GCSStore) Read(ctx context.Context, key string) ([]byte, string, error) {
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, "", err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", err
	}
	return data, r.Attrs.ContentEncoding, nil
}

func (s *GCSStore) Write(ctx context.Context, key string, data []byte, contentType string) error {
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
