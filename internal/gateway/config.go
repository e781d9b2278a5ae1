package gateway

import "time"

// Config holds HTTP gateway configuration.
type Config struct {
	Bind        string                      `yaml:"bind"`
	Auth        AuthConfig                  `yaml:"auth"`
	CORSOrigins []string                    `yaml:"cors_origins"`
	Webhooks    map[string]WebhookSourceCfg `yaml:"webhooks"`

	// RunRateLimit is the minimum spacing between manual run requests,
	// with RunBurst requests allowed back to back.
	RunRateLimit time.Duration `yaml:"run_rate_limit"`
	RunBurst     int           `yaml:"run_burst"`

	// WaitTimeout bounds ?wait=true and GET /health.
	WaitTimeout time.Duration `yaml:"wait_timeout"`

	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"` // 0 disables; websockets and waits are long-lived
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Defaults fills zero values with sensible defaults.
func (c *Config) Defaults() {
	if c.Bind == "" {
		c.Bind = "0.0.0.0:8000"
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}
	if c.RunRateLimit <= 0 {
		c.RunRateLimit = time.Second
	}
	if c.RunBurst <= 0 {
		c.RunBurst = 5
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = time.Minute
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}

// AuthConfig configures authentication for control endpoints.
type AuthConfig struct {
	BearerToken string `yaml:"bearer_token"`
	BasicUser   string `yaml:"basic_user"`
	BasicPass   string `yaml:"basic_pass"`
}

// IsConfigured returns true if any auth method is configured.
func (a AuthConfig) IsConfigured() bool {
	return a.BearerToken != "" || (a.BasicUser != "" && a.BasicPass != "")
}

// WebhookSourceCfg holds per-source webhook configuration.
type WebhookSourceCfg struct {
	Secret string `yaml:"secret"`

	// Jobs restricts which jobs the source may trigger. Empty allows all.
	Jobs []string `yaml:"jobs"`
}
