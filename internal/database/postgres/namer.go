package postgres

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tablekit/partgen/pkg/catalog"
)

// Namer chooses child names against the live catalog. Names handed out
// during one run are also tracked locally, since the relations they
// belong to are not created until the script is applied.
type Namer struct {
	pool     *pgxpool.Pool
	mu       sync.Mutex
	reserved map[string]struct{}
}

func NewNamer(pool *pgxpool.Pool) *Namer {
	return &Namer{pool: pool, reserved: make(map[string]struct{})}
}

func (n *Namer) MakeObjectName(name1, name2, label string) string {
	name := catalog.MakeObjectName(name1, name2, label)
	n.mu.Lock()
	n.reserved[name] = struct{}{}
	n.mu.Unlock()
	return name
}

func (n *Namer) ChooseRelationName(ctx context.Context, name1, name2, label, namespace string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for pass := 0; ; pass++ {
		modlabel := label
		if pass > 0 {
			modlabel = fmt.Sprintf("%s%d", label, pass)
		}
		name := catalog.MakeObjectName(name1, name2, modlabel)
		if _, taken := n.reserved[name]; taken {
			continue
		}
		exists, err := n.relationExists(ctx, namespace, name)
		if err != nil {
			return "", err
		}
		if !exists {
			n.reserved[name] = struct{}{}
			return name, nil
		}
	}
}

func (n *Namer) relationExists(ctx context.Context, namespace, name string) (bool, error) {
	const query = `
SELECT EXISTS (
    SELECT 1
    FROM pg_class c
    JOIN pg_namespace n ON n.oid = c.relnamespace
    WHERE n.nspname = $1 AND c.relname = $2
)`
	var exists bool
	if err := n.pool.QueryRow(ctx, query, namespace, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking relation name %q: %w", name, err)
	}
	return exists, nil
}
