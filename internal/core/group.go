package core

import (
	"slices"
	"strings"
	"sync"
	"time"
)

// Visibility controls who may join a group.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Group is a snapshot of a named group. Member order is join order.
type Group struct {
	Name       string
	Visibility Visibility
	Members    []string
	CreatedAt  time.Time
}

// IsMember reports whether key is in the snapshot's member list.
func (g Group) IsMember(key string) bool {
	return slices.Contains(g.Members, key)
}

type group struct {
	name       string
	visibility Visibility
	members    []string
	memberSet  map[string]struct{}
	createdAt  time.Time
}

func (g *group) add(key string) bool {
	if _, ok := g.memberSet[key]; ok {
		return false
	}
	g.memberSet[key] = struct{}{}
	g.members = append(g.members, key)
	return true
}

func (g *group) snapshot() Group {
	return Group{
		Name:       g.name,
		Visibility: g.visibility,
		Members:    slices.Clone(g.members),
		CreatedAt:  g.createdAt,
	}
}

// GroupStore owns named groups and their membership rules.
// Groups are never deleted and member sets only grow.
type GroupStore struct {
	mu     sync.RWMutex
	groups map[string]*group
	order  []string
}

// NewGroupStore creates an empty group store.
func NewGroupStore() *GroupStore {
	return &GroupStore{groups: make(map[string]*group)}
}

// Create adds a group. The creator is always a member.
func (s *GroupStore) Create(name string, visibility Visibility, members []string, creator string) (Group, error) {
	if !validGroupName(name) {
		return Group{}, ErrInvalidGroupName
	}
	switch visibility {
	case VisibilityPublic, VisibilityPrivate:
	case "":
		visibility = VisibilityPublic
	default:
		return Group{}, badRequest("visibility must be public or private")
	}

	for _, m := range members {
		if !validMemberRef(strings.TrimSpace(m)) {
			return Group{}, badRequest("member " + m + " is not an identity key")
		}
	}

	g := &group{
		name:       name,
		visibility: visibility,
		memberSet:  make(map[string]struct{}, len(members)+1),
		createdAt:  time.Now(),
	}
	g.add(creator)
	for _, m := range members {
		if m = strings.TrimSpace(m); m != "" {
			g.add(m)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.groups[name]; exists {
		return Group{}, ErrDuplicateName
	}
	s.groups[name] = g
	s.order = append(s.order, name)
	return g.snapshot(), nil
}

// Join adds key to a public group, or admits an existing member of a private one.
// Returns the group snapshot after the join.
func (s *GroupStore) Join(name, key string) (Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[name]
	if !ok {
		return Group{}, ErrGroupNotFound
	}
	if g.visibility == VisibilityPrivate {
		if _, member := g.memberSet[key]; !member {
			return Group{}, ErrForbidden
		}
		return g.snapshot(), nil
	}
	g.add(key)
	return g.snapshot(), nil
}

// Get returns a snapshot of the named group.
func (s *GroupStore) Get(name string) (Group, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[name]
	if !ok {
		return Group{}, false
	}
	return g.snapshot(), true
}

// IsMember reports whether key belongs to the named group.
func (s *GroupStore) IsMember(name, key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[name]
	if !ok {
		return false
	}
	_, member := g.memberSet[key]
	return member
}

// Members returns the member keys of the named group in join order.
func (s *GroupStore) Members(name string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[name]
	if !ok {
		return nil
	}
	return slices.Clone(g.members)
}

// List returns all groups in creation order.
func (s *GroupStore) List() []Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Group, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.groups[name].snapshot())
	}
	return out
}

// MemberOf returns the groups key belongs to, in creation order.
func (s *GroupStore) MemberOf(key string) []Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Group
	for _, name := range s.order {
		g := s.groups[name]
		if _, ok := g.memberSet[key]; ok {
			out = append(out, g.snapshot())
		}
	}
	return out
}
