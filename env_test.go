package thankyou_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	thankyou "github.com/st-keller/thankyou-client"
)

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadEnvDefaults(t *testing.T) {
	cfg, err := thankyou.LoadEnv(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8000", cfg.BaseURL)
	require.Equal(t, "default-project", cfg.ProjectName)
	require.Zero(t, cfg.DevID)
	require.Equal(t, time.Second, cfg.InactivityDelay)
	require.Equal(t, 10*time.Second, cfg.Transport.Timeout)
	require.Empty(t, cfg.UserID)
}

func TestLoadEnvFileAndOverride(t *testing.T) {
	path := writeEnvFile(t, `
# backend
THANKYOU_BASE_URL=https://thanks.example.com
THANKYOU_PROJECT_NAME=file-project
THANKYOU_DEV_ID=4
THANKYOU_INACTIVITY_DELAY=1500ms
THANKYOU_CA_PATH=/etc/thankyou/ca.pem
`)
	t.Setenv("THANKYOU_PROJECT_NAME", "env-project")

	cfg, err := thankyou.LoadEnv(path)
	require.NoError(t, err)
	require.Equal(t, "https://thanks.example.com", cfg.BaseURL)
	require.Equal(t, "env-project", cfg.ProjectName, "process environment wins")
	require.Equal(t, 4, cfg.DevID)
	require.Equal(t, 1500*time.Millisecond, cfg.InactivityDelay)
	require.Equal(t, "/etc/thankyou/ca.pem", cfg.Transport.CAPath)
}

func TestLoadEnvInvalid(t *testing.T) {
	t.Setenv("THANKYOU_DEV_ID", "seven")
	_, err := thankyou.LoadEnv()
	require.ErrorContains(t, err, "THANKYOU_DEV_ID")

	t.Setenv("THANKYOU_DEV_ID", "7")
	t.Setenv("THANKYOU_INACTIVITY_DELAY", "soon")
	_, err = thankyou.LoadEnv()
	require.ErrorContains(t, err, "THANKYOU_INACTIVITY_DELAY")
}
