package core

import "context"

// TokenStore holds the most recent token per Source.
type TokenStore interface {
	// Save records a token, replacing any previous record of the same Source.
	Save(ctx context.Context, rec TokenRecord) error

	// Get returns the current record of a source, or a NotFoundError.
	Get(ctx context.Context, source Source) (*TokenRecord, error)

	// FindByToken returns the record holding the given token, or a NotFoundError.
	FindByToken(ctx context.Context, token string) (*TokenRecord, error)

	// List returns all retained records, most recently saved first.
	List(ctx context.Context) ([]TokenRecord, error)
}
