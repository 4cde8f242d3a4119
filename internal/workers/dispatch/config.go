// internal/workers/dispatch/config.go
package dispatch

import "time"

type Config struct {
	FromEmail           string
	SMSEnabled          bool
	AlertPhoneNumber    string
	SMSSenderID         string
	ScoreAlertThreshold int
	Timeout             time.Duration
}

func LoadConfig() *Config {
	return &Config{
		ScoreAlertThreshold: 80,
		Timeout:             30 * time.Second,
	}
}
