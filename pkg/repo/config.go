package repo

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"github.com/gritvcs/grit/pkg/object"
)

// Config is the repository configuration, stored as config.toml in the
// grit directory.
type Config struct {
	Core    CoreConfig    `toml:"core"`
	User    UserConfig    `toml:"user"`
	Storage StorageConfig `toml:"storage"`
}

// CoreConfig records immutable repository facts.
type CoreConfig struct {
	HashAlgorithm string `toml:"hashAlgorithm"`
	Bare          bool   `toml:"bare"`
}

// UserConfig is the default commit identity.
type UserConfig struct {
	Name  string `toml:"name,omitempty"`
	Email string `toml:"email,omitempty"`
}

// StorageConfig selects the object store backend.
type StorageConfig struct {
	// Backend is "local" (default) or "s3".
	Backend string `toml:"backend,omitempty"`
	S3      S3StorageConfig `toml:"s3,omitempty"`
}

// S3StorageConfig configures the S3-compatible backend. Credentials may be
// left empty to use the standard AWS environment variables.
type S3StorageConfig struct {
	Endpoint     string `toml:"endpoint,omitempty"`
	Bucket       string `toml:"bucket,omitempty"`
	Prefix       string `toml:"prefix,omitempty"`
	Region       string `toml:"region,omitempty"`
	AccessKey    string `toml:"access_key,omitempty"`
	SecretKey    string `toml:"secret_key,omitempty"`
	UseSSL       bool   `toml:"use_ssl,omitempty"`
	StorageClass string `toml:"storage_class,omitempty"`
}

const hashAlgorithmSHA256 = "sha256"

func defaultConfig(bare bool) *Config {
	return &Config{
		Core: CoreConfig{
			HashAlgorithm: hashAlgorithmSHA256,
			Bare:          bare,
		},
		Storage: StorageConfig{Backend: "local"},
	}
}

func (r *Repo) configPath() string {
	return filepath.Join(r.GritDir, "config.toml")
}

func readConfigFile(path string) (*Config, error) {
	cfg := defaultConfig(false)
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if cfg.Core.HashAlgorithm != hashAlgorithmSHA256 {
		return nil, fmt.Errorf("read config: unsupported hash algorithm %q", cfg.Core.HashAlgorithm)
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "local"
	}
	return cfg, nil
}

// WriteConfig atomically writes config.toml.
func (r *Repo) WriteConfig(cfg *Config) error {
	if cfg == nil {
		cfg = defaultConfig(false)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("write config: encode: %w", err)
	}

	if err := atomicWriteFile(r.GritDir, r.configPath(), buf.Bytes()); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	r.Config = cfg
	return nil
}

// openStore constructs the object store selected by config.
func openStore(gritDir string, cfg *Config, log *logrus.Logger) (object.Store, error) {
	switch cfg.Storage.Backend {
	case "", "local":
		return object.NewFSStore(gritDir), nil
	case "s3":
		s3 := cfg.Storage.S3
		return object.NewS3Store(object.S3Config{
			Endpoint:       s3.Endpoint,
			Bucket:         s3.Bucket,
			Prefix:         s3.Prefix,
			Region:         s3.Region,
			AccessKey:      s3.AccessKey,
			SecretKey:      s3.SecretKey,
			UseSSL:         s3.UseSSL,
			StorageClass:   s3.StorageClass,
			RequestTimeout: 30 * time.Second,
		}, log)
	default:
		return nil, fmt.Errorf("open store: unknown backend %q", cfg.Storage.Backend)
	}
}

// atomicWriteFile writes data to path via a temp file in dir plus rename, so
// a crash leaves either the old or the new content, never a torn file.
func atomicWriteFile(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
