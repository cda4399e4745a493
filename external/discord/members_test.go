package discord

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
)

func TestResolveMember_UsesStateCacheFirst(t *testing.T) {
	s := newTestSession(t, func(req *http.Request) (*http.Response, error) {
		t.Fatalf("unexpected REST call: %s %s", req.Method, req.URL.String())
		return nil, nil
	})
	if err := s.State.GuildAdd(&discordgo.Guild{ID: "guild-1"}); err != nil {
		t.Fatalf("failed to add guild to state: %v", err)
	}
	if err := s.State.MemberAdd(&discordgo.Member{
		GuildID: "guild-1",
		Nick:    "Ally",
		Roles:   []string{"mod"},
		User:    &discordgo.User{ID: "user-1", Username: "alice"},
	}); err != nil {
		t.Fatalf("failed to add member to state: %v", err)
	}

	d := NewMemberDirectory(s, "guild-1")
	m, err := d.ResolveMember(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m == nil || m.DisplayName != "Ally" || !m.HasRole("mod") {
		t.Fatalf("unexpected member: %+v", m)
	}
}

func TestResolveMember_FallsBackToREST(t *testing.T) {
	s := newTestSession(t, func(req *http.Request) (*http.Response, error) {
		if !strings.HasSuffix(req.URL.Path, "/guilds/guild-1/members/user-1") {
			t.Fatalf("unexpected request path: %s", req.URL.Path)
		}
		return jsonResponse(http.StatusOK, `{"user":{"id":"user-1","username":"alice","global_name":"Alice"},"roles":["r1"]}`), nil
	})

	d := NewMemberDirectory(s, "guild-1")
	m, err := d.ResolveMember(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m == nil || m.DisplayName != "Alice" || !m.HasRole("r1") {
		t.Fatalf("unexpected member: %+v", m)
	}
}

func TestResolveMember_ReturnsNilWhenNotInGuild(t *testing.T) {
	s := newTestSession(t, func(req *http.Request) (*http.Response, error) {
		return notFound(), nil
	})

	d := NewMemberDirectory(s, "guild-1")
	m, err := d.ResolveMember(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m != nil {
		t.Fatalf("expected nil member, got %+v", m)
	}
}

func TestRemoveRole_IgnoresNotFound(t *testing.T) {
	s := newTestSession(t, func(req *http.Request) (*http.Response, error) {
		if req.Method != http.MethodDelete {
			t.Fatalf("unexpected method: %s", req.Method)
		}
		return notFound(), nil
	})
	d := NewMemberDirectory(s, "guild-1")
	if err := d.RemoveRole(context.Background(), "user-1", "role-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
