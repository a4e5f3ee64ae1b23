package soda

import (
	"fmt"
	"os"
	"strings"

	"github.com/nucstore/nucstore_sdk_go/internal/devseed"
	"github.com/nucstore/nucstore_sdk_go/pkg/soda/mock"
)

const (
	envMode     = "NUCSTORE_RUNTIME_MODE"
	envBaseURL  = "NUCSTORE_DB_URL"
	envUsername = "NUCSTORE_DB_USERNAME"
	envPassword = "NUCSTORE_DB_PASSWORD"
	envMockSeed = "NUCSTORE_MOCK_SEED"

	modeAuto = "auto"
	modeHTTP = "http"
	modeMock = "mock"
)

// NewFromEnv initialises a Client from environment variables and returns
// the resolved mode ("http" or "mock"). HTTP mode requires the database URL
// and both credentials; missing values fail with ErrConfiguration.
func NewFromEnv(opts ...Option) (client *Client, mode string, err error) {
	mode = strings.ToLower(strings.TrimSpace(os.Getenv(envMode)))
	baseURL := strings.TrimSpace(os.Getenv(envBaseURL))

	switch mode {
	case "", modeAuto:
		if baseURL != "" {
			return newEnvHTTPClient(baseURL, opts)
		}
		return newEnvMockClient(opts)
	case modeHTTP:
		if baseURL == "" {
			return nil, "", fmt.Errorf("%w: HTTP mode requires %s", ErrConfiguration, envBaseURL)
		}
		return newEnvHTTPClient(baseURL, opts)
	case modeMock:
		return newEnvMockClient(opts)
	default:
		return nil, "", fmt.Errorf("%w: unsupported %s value %q", ErrConfiguration, envMode, mode)
	}
}

func newEnvHTTPClient(baseURL string, opts []Option) (*Client, string, error) {
	username := strings.TrimSpace(os.Getenv(envUsername))
	password := strings.TrimSpace(os.Getenv(envPassword))
	if username == "" {
		return nil, "", fmt.Errorf("%w: %s is not set", ErrConfiguration, envUsername)
	}
	if password == "" {
		return nil, "", fmt.Errorf("%w: %s is not set", ErrConfiguration, envPassword)
	}
	client, err := New(baseURL, username, password, opts...)
	if err != nil {
		return nil, "", err
	}
	return client, modeHTTP, nil
}

func newEnvMockClient(opts []Option) (*Client, string, error) {
	store := mock.New()
	if path := strings.TrimSpace(os.Getenv(envMockSeed)); path != "" {
		seeds, err := devseed.LoadSeed(path)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
		if err := store.Seed(seeds); err != nil {
			return nil, "", fmt.Errorf("%w: apply mock seed: %v", ErrConfiguration, err)
		}
	}
	return NewWithBackend(store, opts...), modeMock, nil
}
