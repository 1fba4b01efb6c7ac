package core

import (
	"errors"
	"slices"
	"testing"
)

func TestGroupStoreCreate(t *testing.T) {
	s := NewGroupStore()

	g, err := s.Create("team", "", []string{"bob#B", " ", "alice#A"}, "alice#A")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if g.Visibility != VisibilityPublic {
		t.Fatalf("expected default visibility public, got %s", g.Visibility)
	}
	if want := []string{"alice#A", "bob#B"}; !slices.Equal(g.Members, want) {
		t.Fatalf("members = %v, want %v", g.Members, want)
	}

	if _, err := s.Create("team", VisibilityPrivate, nil, "carol#C"); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("expected duplicate_name, got %v", err)
	}
}

func TestGroupStoreRejectsBadInput(t *testing.T) {
	s := NewGroupStore()
	for _, name := range []string{"", " padded", "a#b", "a|b"} {
		if _, err := s.Create(name, VisibilityPublic, nil, "alice#A"); !errors.Is(err, ErrInvalidGroupName) {
			t.Fatalf("name %q: expected invalid_group_name, got %v", name, err)
		}
	}
	if _, err := s.Create("ok", "secret", nil, "alice#A"); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected bad_request for unknown visibility, got %v", err)
	}

	members := map[string][]string{
		"bare username":   {"bob"},
		"missing tag":     {"bob#"},
		"missing name":    {"#B"},
		"direct key":      {"x|y"},
		"piped identity":  {"alice#A|bob#B"},
		"one bad of many": {"bob#B", "carol"},
	}
	for name, refs := range members {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Create("core-team", VisibilityPrivate, refs, "alice#A"); !errors.Is(err, ErrBadRequest) {
				t.Fatalf("members %v: expected bad_request, got %v", refs, err)
			}
		})
	}
	if _, ok := s.Get("core-team"); ok {
		t.Fatalf("rejected group must not be stored")
	}
}

func TestGroupStoreJoin(t *testing.T) {
	s := NewGroupStore()
	if _, err := s.Create("open", VisibilityPublic, nil, "alice#A"); err != nil {
		t.Fatalf("create open: %v", err)
	}
	if _, err := s.Create("closed", VisibilityPrivate, []string{"bob#B"}, "alice#A"); err != nil {
		t.Fatalf("create closed: %v", err)
	}

	if _, err := s.Join("missing", "bob#B"); !errors.Is(err, ErrGroupNotFound) {
		t.Fatalf("expected group_not_found, got %v", err)
	}
	if _, err := s.Join("closed", "carol#C"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if got, want := s.Members("closed"), []string{"alice#A", "bob#B"}; !slices.Equal(got, want) {
		t.Fatalf("forbidden join changed members: %v, want %v", got, want)
	}
	if _, err := s.Join("closed", "bob#B"); err != nil {
		t.Fatalf("existing member should be admitted: %v", err)
	}

	g, err := s.Join("open", "carol#C")
	if err != nil {
		t.Fatalf("join open: %v", err)
	}
	if !g.IsMember("carol#C") {
		t.Fatalf("carol should be a member")
	}
	g, _ = s.Join("open", "carol#C")
	if len(g.Members) != 2 {
		t.Fatalf("repeat join should be idempotent, members = %v", g.Members)
	}
}

func TestGroupStoreListAndMemberOf(t *testing.T) {
	s := NewGroupStore()
	for _, name := range []string{"b", "a", "c"} {
		if _, err := s.Create(name, VisibilityPublic, nil, "alice#A"); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}
	if _, err := s.Join("a", "bob#B"); err != nil {
		t.Fatalf("join: %v", err)
	}

	var names []string
	for _, g := range s.List() {
		names = append(names, g.Name)
	}
	if want := []string{"b", "a", "c"}; !slices.Equal(names, want) {
		t.Fatalf("list order = %v, want %v", names, want)
	}

	mine := s.MemberOf("bob#B")
	if len(mine) != 1 || mine[0].Name != "a" {
		t.Fatalf("unexpected groups for bob: %+v", mine)
	}
	if !s.IsMember("a", "bob#B") || s.IsMember("b", "bob#B") {
		t.Fatalf("IsMember disagrees with Join")
	}
}

func TestGroupSnapshotIsolation(t *testing.T) {
	s := NewGroupStore()
	g, _ := s.Create("team", VisibilityPublic, nil, "alice#A")
	g.Members[0] = "mallory#M"

	if got := s.Members("team"); got[0] != "alice#A" {
		t.Fatalf("snapshot mutation leaked into store: %v", got)
	}
}
