package secrets

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/rs/zerolog"
)

// SecretsManagerAPI is the subset of the Secrets Manager client in use.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManagerProvider resolves credentials stored as a JSON SecretString.
type SecretsManagerProvider struct {
	client SecretsManagerAPI
	logger zerolog.Logger
}

// NewSecretsManagerProvider wraps a Secrets Manager client.
func NewSecretsManagerProvider(client SecretsManagerAPI, logger zerolog.Logger) *SecretsManagerProvider {
	return &SecretsManagerProvider{
		client: client,
		logger: logger.With().Str("component", "secrets").Logger(),
	}
}

// Fetch implements Provider.
func (p *SecretsManagerProvider) Fetch(ctx context.Context, name string) (Credentials, error) {
	out, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: get secret %s: %w", ErrConfiguration, name, err)
	}

	raw := aws.ToString(out.SecretString)
	if raw == "" && len(out.SecretBinary) > 0 {
		raw = string(out.SecretBinary)
	}
	if raw == "" {
		return Credentials{}, fmt.Errorf("%w: secret %s is empty", ErrConfiguration, name)
	}

	creds, err := Parse([]byte(raw))
	if err != nil {
		return Credentials{}, err
	}

	p.logger.Debug().Str("secret", name).Str("host", creds.Host).Msg("database credentials resolved")
	return creds, nil
}

var _ Provider = (*SecretsManagerProvider)(nil)
