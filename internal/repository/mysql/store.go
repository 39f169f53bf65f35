package mysql

import (
	"context"

	"gorm.io/gorm"
)

// Store bundles the repositories that share one handle.
type Store struct {
	DB       *gorm.DB
	Users    *UserRepository
	Posts    *PostRepository
	Requests *RequestRepository
	Outbox   *OutboxRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		DB:       db,
		Users:    NewUserRepository(db),
		Posts:    NewPostRepository(db),
		Requests: NewRequestRepository(db),
		Outbox:   NewOutboxRepository(db),
	}
}

// InTx runs fn with every repository bound to one transaction. Any error
// returned by fn rolls the transaction back and is returned unchanged.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}
