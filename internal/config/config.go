package config

import (
	"encoding/json"
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the junk-dispatch relay.
// Values are loaded from environment variables; see printUsage() for the full list.
type Config struct {
	SheetWebhookURL string `json:"sheet_webhook_url"`
	PublicBaseURL   string `json:"public_base_url,omitempty"`
	VapiSMSURL      string `json:"vapi_sms_url,omitempty"`

	TwilioAccountSID string `json:"twilio_account_sid,omitempty"`
	TwilioAuthToken  string `json:"twilio_auth_token,omitempty"`
	TwilioFromNumber string `json:"twilio_from_number,omitempty"`
	OwnerPhone       string `json:"owner_phone,omitempty"`

	ResendAPIKey string `json:"resend_api_key,omitempty"`
	EmailFrom    string `json:"email_from,omitempty"`
	EmailTo      string `json:"email_to,omitempty"`

	HTTPAddr string `json:"http_addr"`

	HTTPShutdownTimeout    time.Duration `json:"-"`
	HTTPShutdownTimeoutStr string        `json:"http_shutdown_timeout"`

	OutboundTimeout    time.Duration `json:"-"`
	OutboundTimeoutStr string        `json:"outbound_timeout"`

	CorrelationTTL    time.Duration `json:"-"`
	CorrelationTTLStr string        `json:"correlation_ttl"`

	CorrelationSweepInterval    time.Duration `json:"-"`
	CorrelationSweepIntervalStr string        `json:"correlation_sweep_interval"`

	NotifyBufferSize int `json:"notify_buffer_size"`

	NotifyDrainTimeout    time.Duration `json:"-"`
	NotifyDrainTimeoutStr string        `json:"notify_drain_timeout"`

	MetricsEnabled bool   `json:"metrics_enabled"`
	MetricsPath    string `json:"metrics_path"`
	MetricsPort    string `json:"metrics_port"`

	RedisAddr string `json:"redis_addr,omitempty"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	cfg := Config{
		SheetWebhookURL:  os.Getenv("SHEET_WEBHOOK_URL"),
		PublicBaseURL:    os.Getenv("PUBLIC_BASE_URL"),
		VapiSMSURL:       os.Getenv("VAPI_SMS_URL"),
		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber: os.Getenv("TWILIO_FROM_NUMBER"),
		OwnerPhone:       os.Getenv("OWNER_PHONE"),
		ResendAPIKey:     os.Getenv("RESEND_API_KEY"),
		EmailFrom:        os.Getenv("EMAIL_FROM"),
		EmailTo:          os.Getenv("EMAIL_TO"),
		HTTPAddr:         os.Getenv("HTTP_ADDR"),

		HTTPShutdownTimeoutStr:      os.Getenv("HTTP_SHUTDOWN_TIMEOUT"),
		OutboundTimeoutStr:          os.Getenv("OUTBOUND_TIMEOUT"),
		CorrelationTTLStr:           os.Getenv("CORRELATION_TTL"),
		CorrelationSweepIntervalStr: os.Getenv("CORRELATION_SWEEP_INTERVAL"),
		NotifyDrainTimeoutStr:       os.Getenv("NOTIFY_DRAIN_TIMEOUT"),

		MetricsEnabled: os.Getenv("METRICS_ENABLED") == "true",
		MetricsPath:    os.Getenv("METRICS_PATH"),
		MetricsPort:    os.Getenv("METRICS_PORT"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
	}

	if bufStr := os.Getenv("NOTIFY_BUFFER_SIZE"); bufStr != "" {
		if n, err := strconv.Atoi(bufStr); err == nil && n > 0 {
			cfg.NotifyBufferSize = n
		} else {
			log.Printf("config: invalid NOTIFY_BUFFER_SIZE %q (must be a positive integer), using default 100", bufStr)
		}
	}
	if cfg.NotifyBufferSize == 0 {
		cfg.NotifyBufferSize = 100
	}

	// Support Railway's PORT variable as fallback for HTTP_ADDR.
	if cfg.HTTPAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.HTTPAddr = ":" + port
		} else {
			cfg.HTTPAddr = ":8080"
		}
	}
	if cfg.HTTPShutdownTimeoutStr == "" {
		cfg.HTTPShutdownTimeoutStr = "10s"
	}
	if cfg.OutboundTimeoutStr == "" {
		cfg.OutboundTimeoutStr = "10s"
	}
	if cfg.CorrelationTTLStr == "" {
		cfg.CorrelationTTLStr = "24h"
	}
	if cfg.CorrelationSweepIntervalStr == "" {
		cfg.CorrelationSweepIntervalStr = "10m"
	}
	if cfg.NotifyDrainTimeoutStr == "" {
		cfg.NotifyDrainTimeoutStr = "30s"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.MetricsPort == "" {
		cfg.MetricsPort = "9090"
	}

	// Parse durations; validation is handled separately by Validate().
	if d, err := time.ParseDuration(cfg.HTTPShutdownTimeoutStr); err == nil {
		cfg.HTTPShutdownTimeout = d
	}
	if d, err := time.ParseDuration(cfg.OutboundTimeoutStr); err == nil {
		cfg.OutboundTimeout = d
	}
	if d, err := time.ParseDuration(cfg.CorrelationTTLStr); err == nil {
		cfg.CorrelationTTL = d
	}
	if d, err := time.ParseDuration(cfg.CorrelationSweepIntervalStr); err == nil {
		cfg.CorrelationSweepInterval = d
	}
	if d, err := time.ParseDuration(cfg.NotifyDrainTimeoutStr); err == nil {
		cfg.NotifyDrainTimeout = d
	}

	return cfg
}

// SMSEnabled reports whether outbound SMS notifications are configured.
func (c Config) SMSEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" &&
		c.TwilioFromNumber != "" && c.OwnerPhone != ""
}

// EmailEnabled reports whether outbound email notifications are configured.
func (c Config) EmailEnabled() bool {
	return c.ResendAPIKey != "" && c.EmailFrom != "" && c.EmailTo != ""
}

// MaskedJSON returns the configuration as JSON with secrets masked.
func (c Config) MaskedJSON() ([]byte, error) {
	masked := struct {
		SheetWebhookURL          string `json:"sheet_webhook_url"`
		PublicBaseURL            string `json:"public_base_url,omitempty"`
		VapiSMSURL               string `json:"vapi_sms_url,omitempty"`
		TwilioAccountSID         string `json:"twilio_account_sid,omitempty"`
		TwilioAuthToken          string `json:"twilio_auth_token,omitempty"`
		TwilioFromNumber         string `json:"twilio_from_number,omitempty"`
		OwnerPhone               string `json:"owner_phone,omitempty"`
		ResendAPIKey             string `json:"resend_api_key,omitempty"`
		EmailFrom                string `json:"email_from,omitempty"`
		EmailTo                  string `json:"email_to,omitempty"`
		HTTPAddr                 string `json:"http_addr"`
		HTTPShutdownTimeout      string `json:"http_shutdown_timeout"`
		OutboundTimeout          string `json:"outbound_timeout"`
		CorrelationTTL           string `json:"correlation_ttl"`
		CorrelationSweepInterval string `json:"correlation_sweep_interval"`
		NotifyBufferSize         int    `json:"notify_buffer_size"`
		NotifyDrainTimeout       string `json:"notify_drain_timeout"`
		MetricsEnabled           bool   `json:"metrics_enabled"`
		MetricsPath              string `json:"metrics_path"`
		MetricsPort              string `json:"metrics_port"`
		RedisAddr                string `json:"redis_addr,omitempty"`
	}{
		SheetWebhookURL:          maskSecret(c.SheetWebhookURL),
		PublicBaseURL:            c.PublicBaseURL,
		VapiSMSURL:               maskSecret(c.VapiSMSURL),
		TwilioAccountSID:         c.TwilioAccountSID,
		TwilioAuthToken:          maskSecret(c.TwilioAuthToken),
		TwilioFromNumber:         c.TwilioFromNumber,
		OwnerPhone:               c.OwnerPhone,
		ResendAPIKey:             maskSecret(c.ResendAPIKey),
		EmailFrom:                c.EmailFrom,
		EmailTo:                  c.EmailTo,
		HTTPAddr:                 c.HTTPAddr,
		HTTPShutdownTimeout:      c.HTTPShutdownTimeoutStr,
		OutboundTimeout:          c.OutboundTimeoutStr,
		CorrelationTTL:           c.CorrelationTTLStr,
		CorrelationSweepInterval: c.CorrelationSweepIntervalStr,
		NotifyBufferSize:         c.NotifyBufferSize,
		NotifyDrainTimeout:       c.NotifyDrainTimeoutStr,
		MetricsEnabled:           c.MetricsEnabled,
		MetricsPath:              c.MetricsPath,
		MetricsPort:              c.MetricsPort,
		RedisAddr:                c.RedisAddr,
	}
	return json.MarshalIndent(masked, "", "  ")
}

// maskSecret masks a secret value, preserving only the URI scheme if present.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	for _, scheme := range []string{"https://", "http://"} {
		if len(s) >= len(scheme) && s[:len(scheme)] == scheme {
			return scheme + "***"
		}
	}
	return "***"
}
