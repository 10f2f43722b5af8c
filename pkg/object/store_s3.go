package object

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
)

// S3Config configures an S3-compatible object store backend.
type S3Config struct {
	Endpoint string
	Bucket   string
	// Prefix is prepended to every key, e.g. "repos/alice/website".
	Prefix       string
	Region       string
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	StorageClass string
	// MaxAttempts bounds transient-error retries. Zero means the default.
	MaxAttempts int
	// RequestTimeout applies per call. Zero means the default.
	RequestTimeout time.Duration
}

const (
	s3DefaultAttempts = 4
	s3DefaultTimeout  = 30 * time.Second

	metaObjectType = "git-object-type"
	metaObjectSize = "git-object-size"
)

// S3Store stores loose objects in an S3-compatible bucket under
// <prefix>/objects/<2-hex>/<62-hex>, byte-compatible with FSStore content so
// repositories can swap backends without reformatting objects.
type S3Store struct {
	client      *minio.Client
	bucket      string
	prefix      string
	storeClass  string
	maxAttempts int
	timeout     time.Duration
	log         *logrus.Logger
}

// NewS3Store builds an S3Store from config. Static credentials are used when
// provided; otherwise the standard AWS environment variables apply.
func NewS3Store(cfg S3Config, log *logrus.Logger) (*S3Store, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("s3 store: endpoint is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 store: bucket is required")
	}

	var creds *credentials.Credentials
	if cfg.AccessKey != "" {
		creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	} else {
		creds = credentials.NewEnvAWS()
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  creds,
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 store: client: %w", err)
	}

	if log == nil {
		log = logrus.New()
	}
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = s3DefaultAttempts
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = s3DefaultTimeout
	}

	return &S3Store{
		client:      client,
		bucket:      cfg.Bucket,
		prefix:      strings.Trim(cfg.Prefix, "/"),
		storeClass:  cfg.StorageClass,
		maxAttempts: attempts,
		timeout:     timeout,
		log:         log,
	}, nil
}

func (s *S3Store) key(h Hash) string {
	return path.Join(s.prefix, "objects", string(h[:2]), string(h[2:]))
}

func (s *S3Store) keyPrefix(hexPrefix string) string {
	base := path.Join(s.prefix, "objects") + "/"
	if len(hexPrefix) >= 2 {
		base += hexPrefix[:2] + "/" + hexPrefix[2:]
	} else {
		base += hexPrefix
	}
	return base
}

// isTransient classifies errors worth retrying: network failures, throttling
// and server errors. Client errors and missing keys are never retried.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode == 0 {
		// No HTTP response at all: connection reset, timeout, DNS.
		return true
	}
	return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
}

func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}

// withRetry runs fn with bounded exponential backoff on transient errors.
func (s *S3Store) withRetry(op string, fn func(ctx context.Context) error) error {
	backoff := time.Second
	var lastErr error

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if attempt > 0 {
			s.log.WithFields(logrus.Fields{
				"op":      op,
				"attempt": attempt + 1,
				"backoff": backoff.String(),
			}).Warn("retrying transient s3 error")
			time.Sleep(backoff)
			backoff *= 2
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		err := fn(ctx)
		cancel()
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("s3 %s: giving up after %d attempts: %w", op, s.maxAttempts, lastErr)
}

// Has reports whether the bucket contains the given hash.
func (s *S3Store) Has(h Hash) (bool, error) {
	if !ValidHash(string(h)) {
		return false, nil
	}
	found := false
	err := s.withRetry("stat", func(ctx context.Context) error {
		_, err := s.client.StatObject(ctx, s.bucket, s.key(h), minio.StatObjectOptions{})
		if err != nil {
			if isNoSuchKey(err) {
				found = false
				return nil
			}
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("object stat %s: %w", h, err)
	}
	return found, nil
}

// Write uploads an object. Metadata tags record the uncompressed type and
// size so platform services can inspect objects without fetching them.
func (s *S3Store) Write(objType Type, data []byte) (Hash, error) {
	h, raw, err := encodeObject(objType, data)
	if err != nil {
		return "", err
	}

	if ok, err := s.Has(h); err != nil {
		return "", err
	} else if ok {
		return h, nil
	}

	opts := minio.PutObjectOptions{
		ContentType: "application/octet-stream",
		UserMetadata: map[string]string{
			metaObjectType: string(objType),
			metaObjectSize: strconv.Itoa(len(data)),
		},
	}
	if s.storeClass != "" {
		opts.StorageClass = s.storeClass
	}

	err = s.withRetry("put", func(ctx context.Context) error {
		_, err := s.client.PutObject(ctx, s.bucket, s.key(h),
			bytes.NewReader(raw), int64(len(raw)), opts)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("object write %s: %w", h, err)
	}
	return h, nil
}

// Read downloads and decodes an object. A decoded payload that does not
// re-hash to the requested value is corruption and is never retried.
func (s *S3Store) Read(h Hash) (Type, []byte, error) {
	if !ValidHash(string(h)) {
		return "", nil, fmt.Errorf("object read %q: %w", h, ErrNotFound)
	}

	var raw []byte
	err := s.withRetry("get", func(ctx context.Context) error {
		obj, err := s.client.GetObject(ctx, s.bucket, s.key(h), minio.GetObjectOptions{})
		if err != nil {
			return err
		}
		defer obj.Close()
		raw, err = io.ReadAll(obj)
		return err
	})
	if err != nil {
		if isNoSuchKey(err) {
			return "", nil, fmt.Errorf("object read %s: %w", h, ErrNotFound)
		}
		return "", nil, fmt.Errorf("object read %s: %w", h, err)
	}
	return decodeObject(h, raw)
}

// Delete removes an object. Missing keys are a no-op.
func (s *S3Store) Delete(h Hash) error {
	if !ValidHash(string(h)) {
		return nil
	}
	err := s.withRetry("remove", func(ctx context.Context) error {
		err := s.client.RemoveObject(ctx, s.bucket, s.key(h), minio.RemoveObjectOptions{})
		if err != nil && isNoSuchKey(err) {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("object delete %s: %w", h, err)
	}
	return nil
}

// List returns all stored hashes matching the given hex prefix.
func (s *S3Store) List(prefix string) ([]Hash, error) {
	var out []Hash
	err := s.withRetry("list", func(ctx context.Context) error {
		out = out[:0]
		objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
			Prefix:    s.keyPrefix(prefix),
			Recursive: true,
		})
		for info := range objects {
			if info.Err != nil {
				return info.Err
			}
			h, ok := s.hashFromKey(info.Key)
			if !ok {
				continue
			}
			if prefix != "" && !strings.HasPrefix(string(h), prefix) {
				continue
			}
			out = append(out, h)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("object list: %w", err)
	}
	return out, nil
}

func (s *S3Store) hashFromKey(key string) (Hash, bool) {
	rest := strings.TrimPrefix(key, path.Join(s.prefix, "objects")+"/")
	shard, tail, ok := strings.Cut(rest, "/")
	if !ok || len(shard) != 2 {
		return "", false
	}
	h := Hash(shard + tail)
	if !ValidHash(string(h)) {
		return "", false
	}
	return h, true
}

// ModTime returns the object's upload time.
func (s *S3Store) ModTime(h Hash) (time.Time, error) {
	if !ValidHash(string(h)) {
		return time.Time{}, fmt.Errorf("object stat %q: %w", h, ErrNotFound)
	}
	var mod time.Time
	err := s.withRetry("stat", func(ctx context.Context) error {
		info, err := s.client.StatObject(ctx, s.bucket, s.key(h), minio.StatObjectOptions{})
		if err != nil {
			return err
		}
		mod = info.LastModified
		return nil
	})
	if err != nil {
		if isNoSuchKey(err) {
			return time.Time{}, fmt.Errorf("object stat %s: %w", h, ErrNotFound)
		}
		return time.Time{}, fmt.Errorf("object stat %s: %w", h, err)
	}
	return mod, nil
}

// PresignedGetURL returns a time-limited download URL for an object, letting
// platform services hand out direct reads without proxying bytes.
func (s *S3Store) PresignedGetURL(h Hash, expiry time.Duration) (*url.URL, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	u, err := s.client.PresignedGetObject(ctx, s.bucket, s.key(h), expiry, url.Values{})
	if err != nil {
		return nil, fmt.Errorf("presign %s: %w", h, err)
	}
	return u, nil
}
