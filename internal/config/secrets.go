package config

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretKeys are the environment variables that may be filled from
// Secrets Manager.
var SecretKeys = []string{
	"ANTHROPIC_API_KEY",
	"GEMINI_API_KEY",
	"OPENAI_API_KEY",
	"ELEVENLABS_API_KEY",
}

// SecretsAPI is the part of the Secrets Manager client used here.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

func NewSecretsClient(cfg aws.Config) SecretsAPI {
	return secretsmanager.NewFromConfig(cfg)
}

// LoadSecrets fetches <prefix><KEY> for every SecretKeys entry not already
// set and exports it. Missing secrets are logged and skipped; the caller
// then falls back to whatever the environment provides.
func LoadSecrets(ctx context.Context, client SecretsAPI, prefix string, logger *slog.Logger) int {
	loaded := 0
	for _, envVar := range SecretKeys {
		if os.Getenv(envVar) != "" {
			continue
		}
		secretID := prefix + envVar
		result, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
			SecretId: aws.String(secretID),
		})
		if err != nil {
			logger.Info("Secret not found", "secret_id", secretID, "error", err)
			continue
		}
		if result.SecretString != nil && *result.SecretString != "" {
			os.Setenv(envVar, *result.SecretString)
			logger.Info("Loaded secret", "secret_id", secretID)
			loaded++
		}
	}
	return loaded
}
