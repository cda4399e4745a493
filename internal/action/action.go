// Package action encodes session button actions as stable custom ids and
// routes them to typed handlers.
//
// A custom id has the form "ps:<kind>:<session>" or, for kinds that act on
// another user, "ps:<kind>:<session>:<target>".
package action

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

const idPrefix = "ps"

var (
	ErrMalformedID   = errors.New("action: malformed custom id")
	ErrUnknownAction = errors.New("action: unknown action kind")
	ErrNoHandler     = errors.New("action: no handler registered")
)

type Kind string

const (
	KindJoin      Kind = "join"
	KindLeave     Kind = "leave"
	KindStop      Kind = "stop"
	KindForceStop Kind = "force_stop"
	KindKick      Kind = "kick"
	KindBan       Kind = "ban"
	KindRecommend Kind = "recommend"
	KindPing      Kind = "ping"
)

// targeted lists every known kind and whether it carries a target user.
var targeted = map[Kind]bool{
	KindJoin:      false,
	KindLeave:     false,
	KindStop:      false,
	KindForceStop: false,
	KindKick:      true,
	KindBan:       true,
	KindRecommend: true,
	KindPing:      false,
}

type Action struct {
	Kind         Kind
	SessionID    string
	TargetUserID string
}

func (a Action) CustomID() string {
	parts := []string{idPrefix, string(a.Kind), a.SessionID}
	if targeted[a.Kind] {
		parts = append(parts, a.TargetUserID)
	}
	return strings.Join(parts, ":")
}

func Parse(customID string) (Action, error) {
	parts := strings.Split(customID, ":")
	if len(parts) < 3 || parts[0] != idPrefix {
		return Action{}, fmt.Errorf("%w: %q", ErrMalformedID, customID)
	}
	kind := Kind(parts[1])
	needsTarget, ok := targeted[kind]
	if !ok {
		return Action{}, fmt.Errorf("%w: %q", ErrUnknownAction, parts[1])
	}
	want := 3
	if needsTarget {
		want = 4
	}
	if len(parts) != want || parts[2] == "" || (needsTarget && parts[3] == "") {
		return Action{}, fmt.Errorf("%w: %q", ErrMalformedID, customID)
	}
	a := Action{Kind: kind, SessionID: parts[2]}
	if needsTarget {
		a.TargetUserID = parts[3]
	}
	return a, nil
}

// Invocation is an action pressed by UserID.
type Invocation struct {
	Action
	UserID    string
	ChannelID string
}

// Handler returns the reply shown to the invoking user.
type Handler func(ctx context.Context, inv Invocation) (string, error)

type Router struct {
	mu       sync.RWMutex
	handlers map[Kind]Handler
}

func NewRouter() *Router {
	return &Router{handlers: make(map[Kind]Handler)}
}

func (r *Router) Handle(kind Kind, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = h
}

func (r *Router) Dispatch(ctx context.Context, customID, userID, channelID string) (string, error) {
	a, err := Parse(customID)
	if err != nil {
		return "", err
	}
	r.mu.RLock()
	h, ok := r.handlers[a.Kind]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoHandler, a.Kind)
	}
	return h(ctx, Invocation{Action: a, UserID: userID, ChannelID: channelID})
}
