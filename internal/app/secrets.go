package app

import (
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
)

// Secrets are credentials read from the environment, optionally seeded from a
// .env file. Real environment variables win over the file.
type Secrets struct {
	UnipileAPIKey     string `env:"UNIPILE_API_KEY"`
	UnipileDSN        string `env:"UNIPILE_DSN"`
	UnipileBaseURL    string `env:"UNIPILE_BASE_URL"`
	WhatsAppAccountID string `env:"WHATSAPP_ACCOUNT_ID"`
	GroqAPIKey        string `env:"GROQ_API_KEY"`
	TelegramToken     string `env:"TELEGRAM_BOT_TOKEN"`
	RedisPassword     string `env:"REDIS_PASSWORD"`
}

// LoadSecrets reads dotenvPath (a missing file is fine) and the process
// environment. The process environment is not modified.
func LoadSecrets(dotenvPath string) (Secrets, error) {
	environ := env.ToMap(os.Environ())
	if p := strings.TrimSpace(dotenvPath); p != "" {
		fileVals, err := godotenv.Read(p)
		switch {
		case err == nil:
			for k, v := range fileVals {
				if _, set := environ[k]; !set {
					environ[k] = v
				}
			}
		case os.IsNotExist(err):
		default:
			return Secrets{}, errors.Wrapf(err, "read %s", p)
		}
	}
	var s Secrets
	if err := env.ParseWithOptions(&s, env.Options{Environment: environ}); err != nil {
		return Secrets{}, errors.Wrap(err, "parse secrets")
	}
	return s, nil
}
