package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/vovakirdan/wirechat-relay/internal/store"
	"github.com/vovakirdan/wirechat-relay/internal/utils"
)

// maxTagAttempts bounds disambiguator re-rolls on collision.
const maxTagAttempts = 3

// tagSpace is the number of distinct 4-character base36 tags.
const tagSpace = 36 * 36 * 36 * 36

// identitySeparator joins display name and tag into an identity key.
const identitySeparator = "#"

// Identity is a logical user: display name plus disambiguator.
type Identity struct {
	Key         string
	DisplayName string
	Tag         string
	ClientID    string
}

// IdentityKey returns the wire form of a (display name, tag) pair.
func IdentityKey(displayName, tag string) string {
	return displayName + identitySeparator + tag
}

// CredentialVerifier hashes and checks credentials.
type CredentialVerifier interface {
	Hash(credential string) (string, error)
	Verify(stored, provided string) bool
}

// JoinRequest carries what a client presents to become an identity.
type JoinRequest struct {
	ClientID    string
	DisplayName string
	Credential  string
}

// Registry maps live connections to identities and back.
// At most one connection is bound to an identity key at any time.
type Registry struct {
	records  store.IdentityStore
	verifier CredentialVerifier
	newTag   func() string

	mu     sync.RWMutex
	byKey  map[string]*Client
	byConn map[*Client]Identity
	order  []string
}

// NewRegistry creates a registry backed by the given identity store.
func NewRegistry(records store.IdentityStore, verifier CredentialVerifier) *Registry {
	return &Registry{
		records:  records,
		verifier: verifier,
		newTag:   utils.NewTag,
		byKey:    make(map[string]*Client),
		byConn:   make(map[*Client]Identity),
	}
}

// Register authenticates req and binds conn to the resulting identity.
// If another connection held the identity it is unbound and returned as evicted;
// the caller is responsible for notifying and closing it.
func (r *Registry) Register(ctx context.Context, conn *Client, req JoinRequest) (Identity, *Client, error) {
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if err := validateJoin(req); err != nil {
		return Identity{}, nil, err
	}

	rec, err := r.resolveRecord(ctx, req)
	if err != nil {
		return Identity{}, nil, err
	}

	id := Identity{
		Key:         IdentityKey(rec.DisplayName, rec.Tag),
		DisplayName: rec.DisplayName,
		Tag:         rec.Tag,
		ClientID:    rec.ClientID,
	}
	evicted := r.bind(conn, id)
	return id, evicted, nil
}

// resolveRecord loads the client's record for the display name and checks the
// credential, or creates a new record with a fresh tag. Store calls happen
// outside the registry lock so slow credential stores do not stall other joins.
func (r *Registry) resolveRecord(ctx context.Context, req JoinRequest) (*store.IdentityRecord, error) {
	rec, err := r.records.GetIdentity(ctx, req.ClientID, req.DisplayName)
	switch {
	case err == nil:
		return r.checkCredential(rec, req.Credential)
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("lookup identity: %w", err)
	}

	taken, err := r.records.CountIdentities(ctx, req.DisplayName)
	if err != nil {
		return nil, fmt.Errorf("count identities: %w", err)
	}
	if taken >= tagSpace {
		return nil, ErrTooManyCollisions
	}

	hash, err := r.verifier.Hash(req.Credential)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxTagAttempts; attempt++ {
		rec = &store.IdentityRecord{
			ClientID:       req.ClientID,
			DisplayName:    req.DisplayName,
			Tag:            r.newTag(),
			CredentialHash: hash,
		}
		err = r.records.CreateIdentity(ctx, rec)
		switch {
		case err == nil:
			return rec, nil
		case errors.Is(err, store.ErrTagTaken):
			continue
		case errors.Is(err, store.ErrIdentityExists):
			// Lost a race with a concurrent first join from the same client.
			existing, getErr := r.records.GetIdentity(ctx, req.ClientID, req.DisplayName)
			if getErr != nil {
				return nil, fmt.Errorf("lookup identity: %w", getErr)
			}
			return r.checkCredential(existing, req.Credential)
		default:
			return nil, fmt.Errorf("create identity: %w", err)
		}
	}
	return nil, ErrTooManyCollisions
}

func (r *Registry) checkCredential(rec *store.IdentityRecord, credential string) (*store.IdentityRecord, error) {
	if !r.verifier.Verify(rec.CredentialHash, credential) {
		return nil, ErrInvalidCredential
	}
	return rec, nil
}

func (r *Registry) bind(conn *Client, id Identity) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := r.byKey[id.Key]
	if evicted == conn {
		evicted = nil
	}
	if evicted != nil {
		delete(r.byConn, evicted)
	}
	if prev, ok := r.byConn[conn]; ok && prev.Key != id.Key {
		delete(r.byKey, prev.Key)
		r.order = removeKey(r.order, prev.Key)
	}

	r.order = append(removeKey(r.order, id.Key), id.Key)
	r.byKey[id.Key] = conn
	r.byConn[conn] = id
	conn.setIdentity(id)
	return evicted
}

// Resolve returns the identity bound to conn.
func (r *Registry) Resolve(conn *Client) (Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byConn[conn]
	return id, ok
}

// Lookup returns the live connection bound to an identity key.
func (r *Registry) Lookup(key string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byKey[key]
	return c, ok
}

// Unregister removes conn's live binding. Idempotent; a connection that was
// already evicted by a takeover does not disturb the new binding.
func (r *Registry) Unregister(conn *Client) (Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byConn[conn]
	if !ok {
		return Identity{}, false
	}
	delete(r.byConn, conn)
	if r.byKey[id.Key] == conn {
		delete(r.byKey, id.Key)
		r.order = removeKey(r.order, id.Key)
	}
	return id, true
}

// Active lists identity keys of live bindings in insertion order.
func (r *Registry) Active() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

func removeKey(keys []string, key string) []string {
	if i := slices.Index(keys, key); i >= 0 {
		return slices.Delete(keys, i, i+1)
	}
	return keys
}

func validateJoin(req JoinRequest) error {
	switch {
	case req.ClientID == "":
		return badRequest("client id is required")
	case req.DisplayName == "":
		return badRequest("display name is required")
	case len(req.DisplayName) > 32:
		return badRequest("display name is too long")
	case strings.ContainsAny(req.DisplayName, reservedChars):
		return badRequest("display name contains reserved characters")
	case req.Credential == "":
		return badRequest("credential is required")
	}
	return nil
}
