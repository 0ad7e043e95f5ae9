package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Environment-variable expansion inside config values ("${FOO}", "${FOO:-default}")
// is handled by loader.go's expandEnvVars, which operates on the decoded config
// map during Loader.Load so it can run before struct decoding.

func LoadEnvFiles() error {
	envFiles := []string{".env.local", ".env"}

	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	return nil
}

// ResolveAPIKey reads the upstream bearer token from the environment
// variable named by envVar, falling back to defaultEnvVar (OpenRouter's
// OPENROUTER_API_KEY by default) when envVar is unset.
func ResolveAPIKey(envVar, defaultEnvVar string) string {
	if envVar == "" {
		envVar = defaultEnvVar
	}
	return os.Getenv(envVar)
}
