package email

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/mail"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

// fakeSMTP is a minimal plaintext SMTP server that records one transaction.
type fakeSMTP struct {
	ln net.Listener

	mu   sync.Mutex
	from string
	rcpt string
	data string

	rejectRcpt bool
	done       chan struct{}
}

func newFakeSMTP(t *testing.T) *fakeSMTP {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	f := &fakeSMTP{ln: ln, done: make(chan struct{})}
	t.Cleanup(func() { _ = ln.Close() })
	return f
}

func (f *fakeSMTP) serve() {
	defer close(f.done)
	conn, err := f.ln.Accept()
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	r := bufio.NewReader(conn)
	reply := func(s string) { _, _ = conn.Write([]byte(s + "\r\n")) }

	reply("220 localhost ESMTP fake")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.TrimRight(line, "\r\n")
		upper := strings.ToUpper(cmd)
		switch {
		case strings.HasPrefix(upper, "EHLO"), strings.HasPrefix(upper, "HELO"):
			reply("250 localhost")
		case strings.HasPrefix(upper, "MAIL FROM:"):
			f.mu.Lock()
			f.from = cmd[len("MAIL FROM:"):]
			f.mu.Unlock()
			reply("250 ok")
		case strings.HasPrefix(upper, "RCPT TO:"):
			if f.rejectRcpt {
				reply("550 no such user")
				continue
			}
			f.mu.Lock()
			f.rcpt = cmd[len("RCPT TO:"):]
			f.mu.Unlock()
			reply("250 ok")
		case upper == "DATA":
			reply("354 go ahead")
			var b strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				b.WriteString(l)
			}
			f.mu.Lock()
			f.data = b.String()
			f.mu.Unlock()
			reply("250 queued")
		case upper == "QUIT":
			reply("221 bye")
			return
		default:
			reply("502 not implemented")
		}
	}
}

func (f *fakeSMTP) port() int {
	return f.ln.Addr().(*net.TCPAddr).Port
}

func TestSend_DeliversOverSMTP(t *testing.T) {
	t.Parallel()

	srv := newFakeSMTP(t)
	go srv.serve()

	s := New(Config{Host: "127.0.0.1", Port: srv.port(), From: "Recovery <billing@example.com>"}, log.Nop())
	s.now = func() time.Time { return time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC) }

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.Send(ctx, "john@example.com", "[Action Required] Outstanding Balance Notification", "Dear John,\nPlease pay.\n")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	<-srv.done

	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.from != "<billing@example.com>" {
		t.Errorf("MAIL FROM = %q", srv.from)
	}
	if srv.rcpt != "<john@example.com>" {
		t.Errorf("RCPT TO = %q", srv.rcpt)
	}
	for _, want := range []string{
		"Subject: [Action Required] Outstanding Balance Notification\r\n",
		"To: <john@example.com>\r\n",
		"\r\n\r\nDear John,\r\nPlease pay.\r\n",
	} {
		if !strings.Contains(srv.data, want) {
			t.Errorf("data missing %q:\n%s", want, srv.data)
		}
	}
}

func TestSend_RecipientRejected(t *testing.T) {
	t.Parallel()

	srv := newFakeSMTP(t)
	srv.rejectRcpt = true
	go srv.serve()

	s := New(Config{Host: "127.0.0.1", Port: srv.port(), From: "billing@example.com"}, log.Nop())
	err := s.Send(context.Background(), "ghost@example.com", "subj", "body")
	if err == nil {
		t.Fatal("expected error for rejected recipient")
	}
	if !strings.Contains(err.Error(), "rcpt to") {
		t.Errorf("error = %q, want rcpt to", err)
	}
}

func TestSend_NoOpWithoutHost(t *testing.T) {
	t.Parallel()

	s := New(Config{}, nil)
	if err := s.Send(context.Background(), "a@example.com", "s", "b"); err != nil {
		t.Fatalf("Send with empty host should be no-op, got: %v", err)
	}
}

func TestSend_InvalidDestination(t *testing.T) {
	t.Parallel()

	s := New(Config{Host: "127.0.0.1", Port: 2525, From: "billing@example.com"}, log.Nop())
	err := s.Send(context.Background(), "not an address", "s", "b")
	if err == nil || !strings.Contains(err.Error(), "invalid destination") {
		t.Fatalf("error = %v, want invalid destination", err)
	}
}

func TestSend_DialFailure(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	s := New(Config{Host: "127.0.0.1", Port: port, From: "billing@example.com"}, log.Nop())
	err = s.Send(context.Background(), "a@example.com", "s", "b")
	if err == nil || !strings.Contains(err.Error(), "dial 127.0.0.1:"+strconv.Itoa(port)) {
		t.Fatalf("error = %v, want dial failure", err)
	}
}

func TestBuildMessage(t *testing.T) {
	t.Parallel()

	from := &mail.Address{Name: "Revenue Recovery", Address: "billing@example.com"}
	to := &mail.Address{Address: "jane@example.com"}
	msg := string(buildMessage(from, to, "Hello\r\nBcc: evil@example.com", "line1\nline2", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))

	if strings.Contains(msg, "\r\nBcc:") {
		t.Errorf("subject injected a header:\n%s", msg)
	}
	if !strings.Contains(msg, "Date: Fri, 02 Jan 2026 03:04:05 +0000\r\n") {
		t.Errorf("missing date header:\n%s", msg)
	}
	if !strings.Contains(msg, `From: "Revenue Recovery" <billing@example.com>`) {
		t.Errorf("missing from header:\n%s", msg)
	}
	if !strings.HasSuffix(msg, "\r\n\r\nline1\r\nline2\r\n") {
		t.Errorf("body not CRLF normalised:\n%q", msg)
	}
}

func TestValidateConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disabled", Config{}, false},
		{"valid", Config{Host: "smtp.example.com", Port: 465, From: "billing@example.com", Username: "u", Password: "p"}, false},
		{"bad port", Config{Host: "smtp.example.com", Port: 0, From: "billing@example.com"}, true},
		{"bad from", Config{Host: "smtp.example.com", Port: 587, From: "nope"}, true},
		{"password without user", Config{Host: "smtp.example.com", Port: 587, From: "a@example.com", Password: "p"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateConfig() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	err := ValidateConfig(Config{Host: "h", Port: -1, From: "x"})
	var joined interface{ Unwrap() []error }
	if !errors.As(err, &joined) || len(joined.Unwrap()) != 2 {
		t.Errorf("expected two joined errors, got %v", err)
	}
}
