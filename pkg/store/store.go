// Package store contains the SQL repositories for the promotion cache,
// agent overrides, the session ledger, and durable simulation jobs.
package store

import (
	"database/sql"
	"errors"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// Store bundles the repositories over one connection pool.
type Store struct {
	Cache     *PromotionCacheRepo
	Overrides *AgentOverrideRepo
	Ledger    *LedgerRepo
	Jobs      *JobRepo
}

// New creates the repository bundle.
func New(db *sql.DB) *Store {
	return &Store{
		Cache:     &PromotionCacheRepo{db: db},
		Overrides: &AgentOverrideRepo{db: db},
		Ledger:    &LedgerRepo{db: db},
		Jobs:      &JobRepo{db: db},
	}
}
