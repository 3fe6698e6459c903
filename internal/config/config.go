// Package config loads server settings from defaults, an optional JSON file
// and command line flags, in that order of precedence.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/erazemk/catalog/internal/identity"
)

// Duration is a time.Duration that reads "10s"-style strings from JSON and
// flags.
type Duration time.Duration

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) Set(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"10s\": %w", err)
	}
	return d.Set(s)
}

// S3 configures picture storage in an S3-compatible bucket. Pictures are kept
// in the database when Bucket is empty.
type S3 struct {
	Endpoint  string `json:"endpoint"`
	Region    string `json:"region"`
	Bucket    string `json:"bucket"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
}

// Config holds all server settings.
type Config struct {
	Addr     string `json:"addr"`
	Database string `json:"database"`
	LogPath  string `json:"log"`

	ClientID        string   `json:"client_id"`
	TokenInfoURL    string   `json:"token_info_url"`
	ProfileURL      string   `json:"profile_url"`
	VerifierTimeout Duration `json:"verifier_timeout"`

	SessionMaxAge Duration `json:"session_max_age"`
	SecureCookies bool     `json:"secure_cookies"`

	LoginRate    float64 `json:"login_rate"`
	LoginBurst   int     `json:"login_burst"`
	MaxBodyBytes int64   `json:"max_body_bytes"`
	LatestItems  int     `json:"latest_items"`
	ImageMaxSize int     `json:"image_max_size"`

	S3 S3 `json:"s3"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Addr:            ":8000",
		Database:        "catalog.sqlite3",
		TokenInfoURL:    identity.DefaultTokenInfoURL,
		ProfileURL:      identity.DefaultProfileURL,
		VerifierTimeout: Duration(identity.DefaultTimeout),
		SessionMaxAge:   Duration(14 * 24 * time.Hour),
		LoginRate:       1,
		LoginBurst:      5,
		MaxBodyBytes:    10 << 20,
		LatestItems:     5,
		ImageMaxSize:    800,
		S3:              S3{Region: "us-east-1"},
	}
}

const usage = `Usage: catalog [flags]

Flags:
  -c, -config <path>      JSON config file (flags override its values)
  -d, -db <dsn>           SQLite path or postgres:// URL (default: catalog.sqlite3)
  -a, -addr <host:port>   listen address (default: :8000)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
      -client-id <id>     Login with Amazon client ID
      -secure-cookies     mark the session cookie Secure (serve over HTTPS)
  -h, -help               show this help and exit
`

// newFlagSet binds the command line flags to cfg. configPath receives the
// -config value.
func newFlagSet(cfg *Config, configPath *string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("catalog", flag.ContinueOnError)
	fs.SetOutput(out)

	fs.StringVar(configPath, "config", "", "")
	fs.StringVar(configPath, "c", "", "")

	fs.StringVar(&cfg.Database, "db", cfg.Database, "")
	fs.StringVar(&cfg.Database, "d", cfg.Database, "")

	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "")
	fs.StringVar(&cfg.Addr, "a", cfg.Addr, "")

	fs.StringVar(&cfg.LogPath, "log", cfg.LogPath, "")
	fs.StringVar(&cfg.LogPath, "l", cfg.LogPath, "")

	fs.StringVar(&cfg.ClientID, "client-id", cfg.ClientID, "")
	fs.BoolVar(&cfg.SecureCookies, "secure-cookies", cfg.SecureCookies, "")

	fs.Usage = func() { fmt.Fprint(out, usage) }
	return fs
}

// Load builds the configuration from args (without the program name).
// It returns flag.ErrHelp when help was requested.
func Load(args []string, out io.Writer) (*Config, error) {
	cfg := Default()
	var configPath string

	fs := newFlagSet(&cfg, &configPath, out)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	if configPath != "" {
		cfg = Default()
		if err := loadFile(configPath, &cfg); err != nil {
			return nil, err
		}
		// Flags win over the file.
		if err := newFlagSet(&cfg, &configPath, out).Parse(args); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) validate() error {
	var errs []error
	if c.Database == "" {
		errs = append(errs, errors.New("database must not be empty"))
	}
	if c.LatestItems <= 0 {
		errs = append(errs, errors.New("latest_items must be positive"))
	}
	if c.LoginRate <= 0 || c.LoginBurst <= 0 {
		errs = append(errs, errors.New("login_rate and login_burst must be positive"))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("max_body_bytes must be positive"))
	}
	if c.VerifierTimeout <= 0 || c.SessionMaxAge <= 0 {
		errs = append(errs, errors.New("verifier_timeout and session_max_age must be positive"))
	}
	if c.ImageMaxSize <= 0 {
		errs = append(errs, errors.New("image_max_size must be positive"))
	}
	return errors.Join(errs...)
}
