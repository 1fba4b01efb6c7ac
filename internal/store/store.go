package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no identity record matches the lookup.
	ErrNotFound = errors.New("identity not found")
	// ErrTagTaken is returned when the (display name, tag) pair is already in use.
	ErrTagTaken = errors.New("tag already taken for display name")
	// ErrIdentityExists is returned when the client already has a record for the display name.
	ErrIdentityExists = errors.New("identity already exists")
)

// IdentityRecord binds a client to a display name and its disambiguator.
// Records outlive connections; only the live binding is dropped on disconnect.
type IdentityRecord struct {
	ClientID       string
	DisplayName    string
	Tag            string
	CredentialHash string
	CreatedAt      time.Time
}

// IdentityStore handles identity record persistence.
type IdentityStore interface {
	// GetIdentity retrieves the record a client holds for a display name.
	// Returns ErrNotFound if the client never joined under that name.
	GetIdentity(ctx context.Context, clientID, displayName string) (*IdentityRecord, error)

	// CreateIdentity inserts a new record. Returns ErrTagTaken if another
	// record already uses the same display name and tag, and ErrIdentityExists
	// if the client already holds a record for the display name.
	CreateIdentity(ctx context.Context, rec *IdentityRecord) error

	// CountIdentities returns how many records share a display name.
	CountIdentities(ctx context.Context, displayName string) (int, error)

	// Close releases underlying resources.
	Close() error
}
