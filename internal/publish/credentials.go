package publish

import (
	"fmt"
	"os"

	"github.com/zalando/go-keyring"
)

// TokenEnvVar is the environment variable CI pipelines provide the release
// token through.
const TokenEnvVar = "RELFORGE_TOKEN"

const keyringService = "relforge"

// Token resolves the release credential: the environment variable wins, and
// local runs fall back to the OS keyring. The token value must never be
// logged or embedded in diagnostics.
func Token(account string) (string, error) {
	if token := os.Getenv(TokenEnvVar); token != "" {
		return token, nil
	}
	if account == "" {
		account = "api"
	}
	token, err := keyring.Get(keyringService, account)
	if err != nil {
		return "", fmt.Errorf("no release token: %s is unset and keyring lookup failed: %w", TokenEnvVar, err)
	}
	return token, nil
}
