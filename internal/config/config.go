package config

import (
	"fmt"

	"github.com/Netflix/go-env"
)

type Config struct {
	DBPath             string `env:"DB_PATH,default=data/walkweek.sqlite"`
	TwilioAccountSID   string `env:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken    string `env:"TWILIO_AUTH_TOKEN"`
	TwilioFromNumber   string `env:"TWILIO_FROM_NUMBER"`
	RedisURL           string `env:"REDIS_URL"`
	SMSRateLimitPerSec int    `env:"SMS_RATE_LIMIT_PER_SEC,default=10"`
	AuditRetentionDays int    `env:"AUDIT_RETENTION_DAYS,default=90"`
	ReminderMorning    string `env:"REMINDER_MORNING,default=07:30"`
	ReminderEvening    string `env:"REMINDER_EVENING,default=20:00"`
	WalkTimezone       string `env:"WALK_TZ,default=UTC"`
	APIPort            int    `env:"API_PORT,default=8080"`
	LogLevel           string `env:"LOG_LEVEL,default=info"`
}

// TwilioCredentials groups the provider account settings. Any field may be
// empty when the operator has not configured the provider.
type TwilioCredentials struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

func (c TwilioCredentials) Complete() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.FromNumber != ""
}

func (c *Config) Twilio() TwilioCredentials {
	return TwilioCredentials{
		AccountSID: c.TwilioAccountSID,
		AuthToken:  c.TwilioAuthToken,
		FromNumber: c.TwilioFromNumber,
	}
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
