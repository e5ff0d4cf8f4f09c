package config

import (
	"fmt"
	"net/url"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
//
// A missing SHEET_WEBHOOK_URL is not an error: the relay runs in degraded
// mode and skips upserts. Partial notification credentials are errors, since
// they always indicate a deployment mistake.
func Validate(cfg Config) error {
	var errs ValidationErrors

	for field, raw := range map[string]string{
		"SHEET_WEBHOOK_URL": cfg.SheetWebhookURL,
		"PUBLIC_BASE_URL":   cfg.PublicBaseURL,
		"VAPI_SMS_URL":      cfg.VapiSMSURL,
	} {
		if raw == "" {
			continue
		}
		if err := validateURL(raw); err != nil {
			errs = append(errs, ValidationError{Field: field, Message: err.Error()})
		}
	}

	twilioSet := cfg.TwilioAccountSID != "" || cfg.TwilioAuthToken != "" ||
		cfg.TwilioFromNumber != "" || cfg.OwnerPhone != ""
	if twilioSet && !cfg.SMSEnabled() {
		errs = append(errs, ValidationError{
			Field:   "TWILIO_ACCOUNT_SID",
			Message: "partial SMS configuration: TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN, TWILIO_FROM_NUMBER and OWNER_PHONE must all be set",
		})
	}

	emailSet := cfg.ResendAPIKey != "" || cfg.EmailFrom != "" || cfg.EmailTo != ""
	if emailSet && !cfg.EmailEnabled() {
		errs = append(errs, ValidationError{
			Field:   "RESEND_API_KEY",
			Message: "partial email configuration: RESEND_API_KEY, EMAIL_FROM and EMAIL_TO must all be set",
		})
	}

	for field, pair := range map[string]struct {
		raw string
		d   time.Duration
	}{
		"HTTP_SHUTDOWN_TIMEOUT":      {cfg.HTTPShutdownTimeoutStr, cfg.HTTPShutdownTimeout},
		"OUTBOUND_TIMEOUT":           {cfg.OutboundTimeoutStr, cfg.OutboundTimeout},
		"CORRELATION_TTL":            {cfg.CorrelationTTLStr, cfg.CorrelationTTL},
		"CORRELATION_SWEEP_INTERVAL": {cfg.CorrelationSweepIntervalStr, cfg.CorrelationSweepInterval},
		"NOTIFY_DRAIN_TIMEOUT":       {cfg.NotifyDrainTimeoutStr, cfg.NotifyDrainTimeout},
	} {
		if pair.raw == "" {
			continue
		}
		d, err := time.ParseDuration(pair.raw)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("invalid duration: %v", err),
			})
		} else if d <= 0 {
			errs = append(errs, ValidationError{Field: field, Message: "must be positive"})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}
