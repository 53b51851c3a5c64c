package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that override the broker credentials in the file.
const (
	EnvAccountID = "OANDA_ACCOUNT_ID"
	EnvAPIToken  = "OANDA_API_TOKEN"
)

// ErrMissingCredentials means no account id or API token could be found.
var ErrMissingCredentials = errors.New("missing OANDA credentials")

// Credentials authenticate against the broker.
type Credentials struct {
	AccountID string
	APIToken  string
}

// ResolveCredentials loads optional dotenv files (default .env), then prefers
// non-empty environment variables over the values in cfg. Variables already in
// the environment are never replaced by a dotenv file.
func ResolveCredentials(cfg *Config, envFiles ...string) (Credentials, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, path := range envFiles {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Credentials{}, fmt.Errorf("load %s: %w", path, err)
		}
	}

	creds := Credentials{}
	if cfg != nil {
		creds.AccountID = cfg.Broker.AccountID
		creds.APIToken = cfg.Broker.APIToken
	}
	if v := strings.TrimSpace(os.Getenv(EnvAccountID)); v != "" {
		creds.AccountID = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAPIToken)); v != "" {
		creds.APIToken = v
	}

	var missing []string
	if creds.AccountID == "" {
		missing = append(missing, EnvAccountID)
	}
	if creds.APIToken == "" {
		missing = append(missing, EnvAPIToken)
	}
	if len(missing) > 0 {
		return creds, fmt.Errorf("%w: %s is required", ErrMissingCredentials, strings.Join(missing, " and "))
	}
	return creds, nil
}
