// Package email delivers account notifications over SMTP.
package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

const (
	implicitTLSPort = 465
	sendTimeout     = 30 * time.Second
)

// Config describes the SMTP relay.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Sender delivers plain-text mail through an SMTP relay. It implements
// dispatch.Sender. Port 465 uses implicit TLS; other ports upgrade with
// STARTTLS when the server offers it.
type Sender struct {
	cfg    Config
	logger log.Logger
	now    func() time.Time
}

// New creates an SMTP sender. If cfg.Host is empty, Send is a no-op.
func New(cfg Config, logger log.Logger) *Sender {
	if logger == nil {
		logger = log.Nop()
	}
	return &Sender{cfg: cfg, logger: logger, now: time.Now}
}

// Send delivers one message to destination.
func (s *Sender) Send(ctx context.Context, destination, subject, body string) error {
	if s.cfg.Host == "" {
		return nil
	}

	from, err := mail.ParseAddress(s.cfg.From)
	if err != nil {
		return fmt.Errorf("email: invalid from address %q: %w", s.cfg.From, err)
	}
	to, err := mail.ParseAddress(destination)
	if err != nil {
		return fmt.Errorf("email: invalid destination %q: %w", destination, err)
	}

	msg := buildMessage(from, to, subject, body, s.now())

	conn, err := s.dial(ctx)
	if err != nil {
		return fmt.Errorf("email: dial %s: %w", s.addr(), err)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(sendTimeout)
	}
	_ = conn.SetDeadline(deadline)

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("email: smtp handshake: %w", err)
	}
	defer func() { _ = c.Close() }()

	if s.cfg.Port != implicitTLSPort {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(s.tlsCfg()); err != nil {
				return fmt.Errorf("email: starttls: %w", err)
			}
		}
	}

	if s.cfg.Username != "" {
		if err := c.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
			return fmt.Errorf("email: auth: %w", err)
		}
	}

	if err := c.Mail(from.Address); err != nil {
		return fmt.Errorf("email: mail from: %w", err)
	}
	if err := c.Rcpt(to.Address); err != nil {
		return fmt.Errorf("email: rcpt to: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("email: data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return fmt.Errorf("email: write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("email: finish data: %w", err)
	}
	if err := c.Quit(); err != nil {
		return fmt.Errorf("email: quit: %w", err)
	}

	s.logger.Info(ctx, "email sent", "destination", to.Address, "bytes", len(msg))
	return nil
}

func (s *Sender) addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

func (s *Sender) tlsCfg() *tls.Config {
	return &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}
}

func (s *Sender) dial(ctx context.Context) (net.Conn, error) {
	nd := &net.Dialer{Timeout: sendTimeout}
	if s.cfg.Port == implicitTLSPort {
		td := &tls.Dialer{NetDialer: nd, Config: s.tlsCfg()}
		return td.DialContext(ctx, "tcp", s.addr())
	}
	return nd.DialContext(ctx, "tcp", s.addr())
}

// buildMessage renders an RFC 5322 plain-text message with CRLF line endings.
func buildMessage(from, to *mail.Address, subject, body string, date time.Time) []byte {
	var b bytes.Buffer
	header := func(k, v string) {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(v)
		b.WriteString("\r\n")
	}
	header("From", from.String())
	header("To", to.String())
	header("Subject", mime.QEncoding.Encode("utf-8", sanitizeHeader(subject)))
	header("Date", date.Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", `text/plain; charset="utf-8"`)
	header("Content-Transfer-Encoding", "8bit")
	b.WriteString("\r\n")

	body = strings.ReplaceAll(body, "\r\n", "\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	if !strings.HasSuffix(body, "\n") {
		b.WriteString("\r\n")
	}
	return b.Bytes()
}

// sanitizeHeader strips CR/LF so a subject cannot inject headers.
func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}

// ValidateConfig checks a non-empty config for required fields.
func ValidateConfig(cfg Config) error {
	if cfg.Host == "" {
		return nil
	}
	var errs []error
	if cfg.Port <= 0 || cfg.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid SMTP_PORT %d (must be 1..65535)", cfg.Port))
	}
	if _, err := mail.ParseAddress(cfg.From); err != nil {
		errs = append(errs, fmt.Errorf("invalid SMTP_FROM %q: %w", cfg.From, err))
	}
	if cfg.Username == "" && cfg.Password != "" {
		errs = append(errs, errors.New("SMTP_PASSWORD set without SMTP_USERNAME"))
	}
	return errors.Join(errs...)
}
