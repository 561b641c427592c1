package thankyou

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/xerrors"

	"github.com/st-keller/thankyou-client/debounce"
	"github.com/st-keller/thankyou-client/transport"
)

// EnvConfig is the configuration a host process reads from its environment.
type EnvConfig struct {
	BaseURL         string
	ProjectName     string
	DevID           int
	InactivityDelay time.Duration
	UserID          string
	Transport       transport.Options
}

// LoadEnv reads THANKYOU_* variables. Missing files are skipped; values
// already present in the process environment win over the files.
//
//	THANKYOU_BASE_URL          backend base URL (default http://localhost:8000)
//	THANKYOU_PROJECT_NAME      project slug (default default-project)
//	THANKYOU_DEV_ID            developer id (default 0)
//	THANKYOU_INACTIVITY_DELAY  debounce window, e.g. 1s or 1500ms (default 1s)
//	THANKYOU_USER_ID           fixed user id (generated when empty)
//	THANKYOU_CA_PATH           PEM roots for the backend
//	THANKYOU_CERT_PATH         client certificate (mTLS)
//	THANKYOU_KEY_PATH          client key (mTLS)
//	THANKYOU_SUBMIT_TIMEOUT    per-request timeout (default 10s)
func LoadEnv(files ...string) (EnvConfig, error) {
	fileValues := map[string]string{}
	for _, f := range files {
		values, err := godotenv.Read(f)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return EnvConfig{}, xerrors.Errorf("read %s: %w", f, err)
		}
		for k, v := range values {
			if _, ok := fileValues[k]; !ok {
				fileValues[k] = v
			}
		}
	}

	get := func(key, fallback string) string {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			return v
		}
		if v, ok := fileValues[key]; ok && v != "" {
			return v
		}
		return fallback
	}

	devID, err := strconv.Atoi(get("THANKYOU_DEV_ID", "0"))
	if err != nil {
		return EnvConfig{}, xerrors.Errorf("THANKYOU_DEV_ID: %w", err)
	}
	delay, err := time.ParseDuration(get("THANKYOU_INACTIVITY_DELAY", debounce.DefaultDelay.String()))
	if err != nil {
		return EnvConfig{}, xerrors.Errorf("THANKYOU_INACTIVITY_DELAY: %w", err)
	}
	timeout, err := time.ParseDuration(get("THANKYOU_SUBMIT_TIMEOUT", transport.DefaultTimeout.String()))
	if err != nil {
		return EnvConfig{}, xerrors.Errorf("THANKYOU_SUBMIT_TIMEOUT: %w", err)
	}

	return EnvConfig{
		BaseURL:         get("THANKYOU_BASE_URL", "http://localhost:8000"),
		ProjectName:     get("THANKYOU_PROJECT_NAME", "default-project"),
		DevID:           devID,
		InactivityDelay: delay,
		UserID:          get("THANKYOU_USER_ID", ""),
		Transport: transport.Options{
			CAPath:   get("THANKYOU_CA_PATH", ""),
			CertPath: get("THANKYOU_CERT_PATH", ""),
			KeyPath:  get("THANKYOU_KEY_PATH", ""),
			Timeout:  timeout,
		},
	}, nil
}
