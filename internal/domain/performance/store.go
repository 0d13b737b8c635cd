package performance

import "perfreview/internal/platform/querier"

// Store persists reviews in PostgreSQL.
type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

var _ StoreAPI = (*Store)(nil)
