package memory

import "github.com/jackc/pgx/v5/pgxpool"

// NewStore returns a postgres-backed store when a pool is supplied,
// otherwise the in-process store.
func NewStore(pool *pgxpool.Pool) Store {
	if pool == nil {
		return NewInMemoryStore()
	}
	return NewPostgresStore(pool)
}
