package main

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/linnemanlabs/go-core/log"

	rc "github.com/linnemanlabs/recoup/internal/cfg"
	"github.com/linnemanlabs/recoup/internal/notify"
)

func TestNotifySystemd_NoSocket(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")

	err := notifySystemd()
	if err == nil {
		t.Fatal("expected error when NOTIFY_SOCKET is empty")
	}
	if !strings.Contains(err.Error(), "NOTIFY_SOCKET not set") {
		t.Errorf("error = %q, want substring %q", err, "NOTIFY_SOCKET not set")
	}
}

func TestNotifySystemd_InvalidPath(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", filepath.Join(t.TempDir(), "nonexistent.sock"))

	err := notifySystemd()
	if err == nil {
		t.Fatal("expected error for nonexistent socket")
	}
	if !strings.Contains(err.Error(), "dial failed") {
		t.Errorf("error = %q, want substring %q", err, "dial failed")
	}
}

func TestNotifySystemd_Success(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "notify.sock")

	// Create a real unixgram listener.
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(context.Background(), "unixgram", sockPath)
	if err != nil {
		t.Fatalf("listen unixgram: %v", err)
	}
	defer func() { _ = conn.Close() }()

	t.Setenv("NOTIFY_SOCKET", sockPath)

	if err := notifySystemd(); err != nil {
		t.Fatalf("notifySystemd() = %v, want nil", err)
	}

	buf := make([]byte, 256)
	n, _, err := conn.ReadFrom(buf)
	if err != nil {
		t.Fatalf("read from socket: %v", err)
	}

	got := string(buf[:n])
	if got != "READY=1" {
		t.Errorf("payload = %q, want %q", got, "READY=1")
	}
}

func TestNewSender(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		cfg       rc.Config
		wantMulti int // 0 means a log-only sender
	}{
		{"none configured", rc.Config{}, 0},
		{"slack only", rc.Config{SlackWebhookURL: "https://hooks.example.com/x"}, 1},
		{"email only", rc.Config{SMTPHost: "smtp.example.com", SMTPPort: 465, SMTPFrom: "a@example.com"}, 1},
		{"both", rc.Config{SlackWebhookURL: "https://hooks.example.com/x", SMTPHost: "smtp.example.com", SMTPPort: 587, SMTPFrom: "a@example.com"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := newSender(context.Background(), &tt.cfg, log.Nop())
			switch got := s.(type) {
			case *notify.LogSender:
				if tt.wantMulti != 0 {
					t.Errorf("got log sender, want %d channels", tt.wantMulti)
				}
			case *notify.Multi:
				if got.Len() != tt.wantMulti {
					t.Errorf("channels = %d, want %d", got.Len(), tt.wantMulti)
				}
			default:
				t.Errorf("unexpected sender type %T", s)
			}
		})
	}
}

func TestShutdown_RunsInOrderWithBudget(t *testing.T) {
	t.Parallel()

	var order []string
	step := func(name string, err error) stopFn {
		return stopFn{name: name, fn: func(ctx context.Context) error {
			order = append(order, name)
			if _, ok := ctx.Deadline(); !ok {
				t.Errorf("%s: context has no deadline", name)
			}
			return err
		}}
	}

	shutdown(log.Nop(), time.Second, []stopFn{
		step("api", nil),
		step("dispatcher", errors.New("still sending")),
		step("ops", nil),
	})

	if got := strings.Join(order, ","); got != "api,dispatcher,ops" {
		t.Errorf("order = %s, want api,dispatcher,ops", got)
	}
}
