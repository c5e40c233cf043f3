package account

import "context"

// Store is the authoritative collection of accounts and the only writer of
// Status. Implementations hand out copies.
type Store interface {
	Insert(ctx context.Context, n NewAccount) (*Record, error)
	Get(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context) ([]*Record, error)

	// MarkTriggered flips uncontacted to triggered atomically. It reports true
	// only to the caller that performed the transition.
	MarkTriggered(ctx context.Context, id string) (bool, error)

	Len(ctx context.Context) (int, error)
	Reset(ctx context.Context) error
}
