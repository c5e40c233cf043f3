// Package generator produces mock unpaid accounts for demos and load tests.
package generator

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/linnemanlabs/recoup/internal/account"
)

var names = []string{
	"John Doe", "Jane Smith", "Alice Johnson", "Bob Lee", "Maria Kim",
	"Ethan Zhang", "Olivia Brown", "Liam Wilson", "Emma Davis", "Noah Patel",
}

// Generator synthesises valid account tuples.
type Generator struct {
	cfg  Config
	rand *rand.Rand
	now  func() time.Time
}

// New returns a Generator. Zero fields in cfg fall back to DefaultConfig.
func New(cfg Config) *Generator {
	def := DefaultConfig()
	if cfg.Contact == "" {
		cfg.Contact = def.Contact
	}
	if cfg.MaxScore <= 0 || cfg.MaxScore > account.MaxScore || cfg.MinScore < account.MinScore || cfg.MinScore > cfg.MaxScore {
		cfg.MinScore, cfg.MaxScore = def.MinScore, def.MaxScore
	}
	if cfg.MaxBalance <= 0 || cfg.MinBalance < 0 || cfg.MinBalance > cfg.MaxBalance {
		cfg.MinBalance, cfg.MaxBalance = def.MinBalance, def.MaxBalance
	}
	if cfg.MaxDaysAgo <= 0 {
		cfg.MaxDaysAgo = def.MaxDaysAgo
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	return &Generator{
		cfg:  cfg,
		rand: rand.New(rand.NewSource(cfg.Seed)), //nolint:gosec // mock data, not security sensitive
		now:  time.Now,
	}
}

// Generate returns n accounts. Names cycle through a fixed roster and get a
// numeric suffix after the first pass.
func (g *Generator) Generate(n int) []account.NewAccount {
	today := account.DateOf(g.now())
	out := make([]account.NewAccount, 0, max(n, 0))
	for i := range n {
		name := names[i%len(names)]
		if round := i / len(names); round > 0 {
			name = fmt.Sprintf("%s %d", name, round+1)
		}
		days := 1 + g.rand.Intn(g.cfg.MaxDaysAgo)
		out = append(out, account.NewAccount{
			Name:           name,
			ContactAddress: g.cfg.Contact,
			BalanceDue:     account.Cents(g.between(g.cfg.MinBalance, g.cfg.MaxBalance)) * 100,
			DueDate:        today.AddDate(0, 0, -days),
			PaymentScore:   g.between(g.cfg.MinScore, g.cfg.MaxScore),
		})
	}
	return out
}

// Seed inserts n generated accounts into store and returns the records.
func (g *Generator) Seed(ctx context.Context, store account.Store, n int) ([]*account.Record, error) {
	recs := make([]*account.Record, 0, max(n, 0))
	for _, a := range g.Generate(n) {
		if err := ctx.Err(); err != nil {
			return recs, err
		}
		r, err := store.Insert(ctx, a)
		if err != nil {
			return recs, fmt.Errorf("seed %q: %w", a.Name, err)
		}
		recs = append(recs, r)
	}
	return recs, nil
}

// between returns a uniform int in [lo, hi].
func (g *Generator) between(lo, hi int) int {
	return lo + g.rand.Intn(hi-lo+1)
}
