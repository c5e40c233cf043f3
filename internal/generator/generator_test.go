package generator

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/linnemanlabs/recoup/internal/account"
	"github.com/linnemanlabs/recoup/internal/account/memstore"
)

func fixedNow() time.Time { return time.Date(2026, 3, 15, 18, 30, 0, 0, time.UTC) }

func newTestGenerator(seed int64) *Generator {
	g := New(Config{Seed: seed})
	g.now = fixedNow
	return g
}

func TestGenerate_Deterministic(t *testing.T) {
	t.Parallel()

	a := newTestGenerator(7).Generate(25)
	b := newTestGenerator(7).Generate(25)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("same seed produced different accounts")
	}

	c := newTestGenerator(8).Generate(25)
	if reflect.DeepEqual(a, c) {
		t.Fatal("different seeds produced identical accounts")
	}
}

func TestGenerate_WithinRanges(t *testing.T) {
	t.Parallel()

	today := account.DateOf(fixedNow())
	for i, a := range newTestGenerator(1).Generate(500) {
		if err := a.Validate(); err != nil {
			t.Fatalf("account %d invalid: %v", i, err)
		}
		if a.PaymentScore < 25 || a.PaymentScore > 95 {
			t.Errorf("account %d score = %d, want [25,95]", i, a.PaymentScore)
		}
		if a.BalanceDue < 300_00 || a.BalanceDue > 2000_00 || a.BalanceDue%100 != 0 {
			t.Errorf("account %d balance = %d, want whole units in [300,2000]", i, a.BalanceDue)
		}
		days := int(today.Sub(a.DueDate) / (24 * time.Hour))
		if days < 1 || days > 30 {
			t.Errorf("account %d due %d days ago, want [1,30]", i, days)
		}
		if a.ContactAddress != DefaultConfig().Contact {
			t.Errorf("account %d contact = %q", i, a.ContactAddress)
		}
	}
}

func TestGenerate_Names(t *testing.T) {
	t.Parallel()

	got := newTestGenerator(1).Generate(12)
	want := map[int]string{0: "John Doe", 9: "Noah Patel", 10: "John Doe 2", 11: "Jane Smith 2"}
	for i, name := range want {
		if got[i].Name != name {
			t.Errorf("name[%d] = %q, want %q", i, got[i].Name, name)
		}
	}
}

func TestGenerate_Zero(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, -3} {
		if got := newTestGenerator(1).Generate(n); len(got) != 0 {
			t.Errorf("Generate(%d) len = %d, want 0", n, len(got))
		}
	}
}

func TestNew_FallsBackOnBadRanges(t *testing.T) {
	t.Parallel()

	g := New(Config{MinScore: 90, MaxScore: 10, MinBalance: 5, MaxBalance: 1, Seed: 3})
	def := DefaultConfig()
	if g.cfg.MinScore != def.MinScore || g.cfg.MaxScore != def.MaxScore {
		t.Errorf("score range = [%d,%d], want defaults", g.cfg.MinScore, g.cfg.MaxScore)
	}
	if g.cfg.MinBalance != def.MinBalance || g.cfg.MaxBalance != def.MaxBalance {
		t.Errorf("balance range = [%d,%d], want defaults", g.cfg.MinBalance, g.cfg.MaxBalance)
	}
}

func TestSeed_InsertsIntoStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := memstore.New()
	recs, err := newTestGenerator(5).Seed(ctx, st, 10)
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if len(recs) != 10 {
		t.Fatalf("seeded %d, want 10", len(recs))
	}
	n, _ := st.Len(ctx)
	if n != 10 {
		t.Errorf("store len = %d, want 10", n)
	}
	for _, r := range recs {
		if r.Status != account.StatusUncontacted {
			t.Errorf("%s status = %q", r.ID, r.Status)
		}
	}
}

func TestSeed_StopsOnCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	st := memstore.New()
	recs, err := newTestGenerator(5).Seed(ctx, st, 10)
	if err == nil {
		t.Fatal("expected context error")
	}
	if len(recs) != 0 {
		t.Errorf("seeded %d after cancel, want 0", len(recs))
	}
}
