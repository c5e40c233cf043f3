package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net/url"

	"github.com/linnemanlabs/recoup/internal/notify/email"
)

// maxSeedAccounts caps the mock accounts loaded at startup.
const maxSeedAccounts = 10000

// Config adds app-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	SlackWebhookURL       string
	SMTPHost              string
	SMTPPort              int
	SMTPUsername          string
	SMTPPassword          string
	SMTPFrom              string
	SeedAccounts          int
	SeedContact           string
	Seed                  int64
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for notifications")
	fs.StringVar(&c.SMTPHost, "smtp-host", "", "SMTP relay host (empty = email disabled)")
	fs.IntVar(&c.SMTPPort, "smtp-port", 465, "SMTP relay port; 465 uses implicit TLS, others STARTTLS")
	fs.StringVar(&c.SMTPUsername, "smtp-username", "", "SMTP auth username (empty = no auth)")
	fs.StringVar(&c.SMTPPassword, "smtp-password", "", "SMTP auth password")
	fs.StringVar(&c.SMTPFrom, "smtp-from", "", "From address for notification emails")
	fs.IntVar(&c.SeedAccounts, "seed-accounts", 0, "number of mock accounts to load at startup (0..10000)")
	fs.StringVar(&c.SeedContact, "seed-contact", "", "contact address for mock accounts (empty = generator default)")
	fs.Int64Var(&c.Seed, "seed", 0, "random seed for mock accounts (0 = time based)")
}

// Email returns the SMTP settings for the email sender.
func (c *Config) Email() email.Config {
	return email.Config{
		Host:     c.SMTPHost,
		Port:     c.SMTPPort,
		Username: c.SMTPUsername,
		Password: c.SMTPPassword,
		From:     c.SMTPFrom,
	}
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	if c.SlackWebhookURL != "" {
		u, err := url.Parse(c.SlackWebhookURL)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			errs = append(errs, errors.New("invalid SLACK_WEBHOOK_URL (must be an absolute http(s) URL)"))
		}
	}

	if err := email.ValidateConfig(c.Email()); err != nil {
		errs = append(errs, err)
	}

	if c.SeedAccounts < 0 || c.SeedAccounts > maxSeedAccounts {
		errs = append(errs, fmt.Errorf("invalid SEED_ACCOUNTS %d (must be 0..%d)", c.SeedAccounts, maxSeedAccounts))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
