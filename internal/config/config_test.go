package config

import (
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil, io.Discard)
	require.NoError(t, err)
	if diff := cmp.Diff(Default(), *cfg); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFlagAliases(t *testing.T) {
	cfg, err := Load([]string{"-d", "postgres://localhost/catalog", "-addr", ":9000", "-client-id", "amzn1.app", "-secure-cookies"}, io.Discard)
	require.NoError(t, err)
	require.Equal(t, "postgres://localhost/catalog", cfg.Database)
	require.Equal(t, ":9000", cfg.Addr)
	require.Equal(t, "amzn1.app", cfg.ClientID)
	require.True(t, cfg.SecureCookies)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFileThenFlags(t *testing.T) {
	path := writeConfig(t, `{
		"addr": ":7000",
		"client_id": "from-file",
		"verifier_timeout": "3s",
		"latest_items": 8,
		"s3": {"bucket": "pictures", "endpoint": "http://minio:9000"}
	}`)

	cfg, err := Load([]string{"-c", path, "-a", ":7001"}, io.Discard)
	require.NoError(t, err)
	require.Equal(t, ":7001", cfg.Addr, "flags override the file")
	require.Equal(t, "from-file", cfg.ClientID)
	require.Equal(t, Duration(3*time.Second), cfg.VerifierTimeout)
	require.Equal(t, 8, cfg.LatestItems)
	require.Equal(t, "pictures", cfg.S3.Bucket)
	require.Equal(t, "us-east-1", cfg.S3.Region, "unset file values keep defaults")
	require.Equal(t, "catalog.sqlite3", cfg.Database)
}

func TestLoadRejectsBadInput(t *testing.T) {
	_, err := Load([]string{"-c", writeConfig(t, `{"latest_items": 0}`)}, io.Discard)
	require.ErrorContains(t, err, "latest_items")

	_, err = Load([]string{"-c", writeConfig(t, `{"unknown": 1}`)}, io.Discard)
	require.Error(t, err)

	_, err = Load([]string{"-c", writeConfig(t, `{"verifier_timeout": 10}`)}, io.Discard)
	require.Error(t, err)

	_, err = Load([]string{"extra"}, io.Discard)
	require.ErrorContains(t, err, "unexpected argument")
}

func TestLoadHelp(t *testing.T) {
	_, err := Load([]string{"-h"}, io.Discard)
	require.True(t, errors.Is(err, flag.ErrHelp))
}
