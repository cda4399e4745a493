package session

import (
	"context"
	"testing"
	"time"

	"github.com/foxseedlab/playhost/internal/action"
	"github.com/foxseedlab/playhost/internal/discord"
	"github.com/foxseedlab/playhost/internal/repository"
	"github.com/foxseedlab/playhost/internal/reputation"
)

type actionFixture struct {
	env     *testEnv
	reg     *Registry
	router  *action.Router
	recs    *mockRecommendations
	session *Session
}

func newActionFixture(t *testing.T) *actionFixture {
	t.Helper()
	env := newTestEnv(t)
	env.members.members["mod"] = discord.Member{ID: "mod", RoleIDs: []string{"moderator-role"}}
	reg := NewRegistry(env.deps, env.presenterFactory())
	recs := &mockRecommendations{}
	router := action.NewRouter()
	RegisterActions(router, reg, recs, env.members, "moderator-role")

	s, err := reg.StartNewSession(context.Background(), "host", testBlueprint(), "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	return &actionFixture{env: env, reg: reg, router: router, recs: recs, session: s}
}

func (f *actionFixture) press(t *testing.T, a action.Action, userID string) string {
	t.Helper()
	reply, err := f.router.Dispatch(context.Background(), a.CustomID(), userID, "chan")
	if err != nil {
		t.Fatalf("dispatch %s: %v", a.CustomID(), err)
	}
	return reply
}

func TestJoinAction_EnforcesCapacity(t *testing.T) {
	f := newActionFixture(t)
	join := action.Action{Kind: action.KindJoin, SessionID: f.session.ID()}

	if got := f.press(t, join, "alice"); got != messageEphemeralJoined {
		t.Fatalf("unexpected reply for alice: %q", got)
	}
	if got := f.press(t, join, "alice"); got != messageEphemeralAlreadyJoined {
		t.Fatalf("unexpected reply for duplicate: %q", got)
	}
	if got := f.press(t, join, "bob"); got != messageEphemeralJoined {
		t.Fatalf("unexpected reply for bob: %q", got)
	}
	if got := f.press(t, join, "carol"); got != messageEphemeralSessionFull {
		t.Fatalf("expected full session, got %q", got)
	}
	if f.session.PlayerCount() != 2 {
		t.Fatalf("expected 2 players, got %d", f.session.PlayerCount())
	}
}

func TestJoinAction_RejectsUserInAnotherSession(t *testing.T) {
	f := newActionFixture(t)
	other, err := f.reg.StartNewSession(context.Background(), "bob", testBlueprint(), "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := f.press(t, action.Action{Kind: action.KindJoin, SessionID: other.ID()}, "alice"); got != messageEphemeralJoined {
		t.Fatalf("unexpected reply: %q", got)
	}

	if got := f.press(t, action.Action{Kind: action.KindJoin, SessionID: f.session.ID()}, "alice"); got != messageEphemeralInOtherSession {
		t.Fatalf("expected joined user to be rejected, got %q", got)
	}
	if got := f.press(t, action.Action{Kind: action.KindJoin, SessionID: f.session.ID()}, "bob"); got != messageEphemeralInOtherSession {
		t.Fatalf("expected other host to be rejected, got %q", got)
	}
}

func TestJoinAction_UnknownSession(t *testing.T) {
	f := newActionFixture(t)
	if got := f.press(t, action.Action{Kind: action.KindJoin, SessionID: "ffffffff"}, "alice"); got != messageEphemeralUnknownSession {
		t.Fatalf("unexpected reply: %q", got)
	}
}

func TestStopAction_HostOnly(t *testing.T) {
	f := newActionFixture(t)
	stop := action.Action{Kind: action.KindStop, SessionID: f.session.ID()}

	if got := f.press(t, stop, "alice"); got != messageEphemeralHostOnly {
		t.Fatalf("expected host-only reply, got %q", got)
	}
	if got := f.press(t, stop, "host"); got != messageEphemeralStopped {
		t.Fatalf("expected stop, got %q", got)
	}
	if f.session.State() != repository.SessionStateStopping {
		t.Fatalf("expected stopping, got %s", f.session.State())
	}
}

func TestForceStopAction_RequiresModerator(t *testing.T) {
	f := newActionFixture(t)
	force := action.Action{Kind: action.KindForceStop, SessionID: f.session.ID()}

	if got := f.press(t, force, "alice"); got != messageEphemeralModeratorOnly {
		t.Fatalf("expected moderator-only reply, got %q", got)
	}
	if got := f.press(t, force, "mod"); got != messageEphemeralStopped {
		t.Fatalf("expected moderator stop, got %q", got)
	}
	if got := f.press(t, force, "mod"); got != messageEphemeralNotRunning {
		t.Fatalf("expected second force stop to be rejected, got %q", got)
	}
}

func TestKickAction(t *testing.T) {
	f := newActionFixture(t)
	f.press(t, action.Action{Kind: action.KindJoin, SessionID: f.session.ID()}, "alice")
	kick := action.Action{Kind: action.KindKick, SessionID: f.session.ID(), TargetUserID: "alice"}

	if got := f.press(t, kick, "bob"); got != messageEphemeralHostOnly {
		t.Fatalf("expected host-only reply, got %q", got)
	}
	if got := f.press(t, kick, "host"); got != removed("alice", messageEphemeralLeaveReasonKick) {
		t.Fatalf("unexpected kick reply: %q", got)
	}
	if f.session.IsJoined("alice") {
		t.Fatal("expected alice removed")
	}
	if got := f.press(t, kick, "host"); got != messageEphemeralTargetNotJoined {
		t.Fatalf("expected second kick to find nobody, got %q", got)
	}
	changes := f.env.recommender.snapshot()
	if len(changes) != 1 || changes[0].userID != "alice" || !changes[0].force {
		t.Fatalf("expected one forced penalty, got %+v", changes)
	}
}

func TestBanAction_PreventsRejoin(t *testing.T) {
	f := newActionFixture(t)
	join := action.Action{Kind: action.KindJoin, SessionID: f.session.ID()}
	f.press(t, join, "alice")
	f.press(t, join, "bob")
	ban := action.Action{Kind: action.KindBan, SessionID: f.session.ID(), TargetUserID: "alice"}
	if got := f.press(t, ban, "host"); got != removed("alice", messageEphemeralLeaveReasonBan) {
		t.Fatalf("unexpected ban reply: %q", got)
	}

	if got := f.press(t, join, "alice"); got != messageEphemeralBanned {
		t.Fatalf("expected banned reply on rejoin, got %q", got)
	}
	if f.session.IsJoined("alice") {
		t.Fatal("expected banned user to stay out")
	}
	if ok, err := f.session.Join(context.Background(), "alice"); err != nil || ok {
		t.Fatalf("expected direct join to be refused, got ok=%v err=%v", ok, err)
	}

	kick := action.Action{Kind: action.KindKick, SessionID: f.session.ID(), TargetUserID: "bob"}
	f.press(t, kick, "host")
	if got := f.press(t, join, "bob"); got != messageEphemeralJoined {
		t.Fatalf("expected kicked user to be able to rejoin, got %q", got)
	}
}

func TestRecommendAction_Replies(t *testing.T) {
	until := testEpoch.Add(time.Hour)
	tests := []struct {
		name     string
		decision reputation.GiveDecision
		want     string
	}{
		{name: "self", decision: reputation.GiveDecision{SelfGive: true}, want: messageEphemeralSelfRecommend},
		{name: "locked", decision: reputation.GiveDecision{}, want: messageEphemeralRecommendLocked},
		{name: "cap", decision: reputation.GiveDecision{DailyCap: 3, GivenToday: 3}, want: giveCapReached(3)},
		{name: "cooldown", decision: reputation.GiveDecision{DailyCap: 3, GivenToday: 1, CooldownEndsAt: until}, want: giveCooldown(until)},
		{name: "given", decision: reputation.GiveDecision{Allowed: true, DailyCap: 3, GivenToday: 2}, want: recommended(2, 3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newActionFixture(t)
			f.recs.decision = tt.decision
			got := f.press(t, action.Action{Kind: action.KindRecommend, SessionID: f.session.ID(), TargetUserID: "host"}, "alice")
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
			if len(f.recs.gives) != 1 || f.recs.gives[0] != [2]string{"alice", "host"} {
				t.Fatalf("unexpected gives: %v", f.recs.gives)
			}
		})
	}
}

func TestPingAction(t *testing.T) {
	f := newActionFixture(t)
	ping := action.Action{Kind: action.KindPing, SessionID: f.session.ID()}

	if got := f.press(t, ping, "host"); got != messageEphemeralPingLocked {
		t.Fatalf("expected locked reply, got %q", got)
	}

	next := testEpoch.Add(10 * time.Minute)
	f.recs.nextPing = next
	if got := f.press(t, ping, "host"); got != pingCooldown(next) {
		t.Fatalf("expected cooldown reply, got %q", got)
	}

	f.recs.canPing = true
	if got := f.press(t, ping, "alice"); got != messageEphemeralHostOnly {
		t.Fatalf("expected host-only reply, got %q", got)
	}
	if got := f.press(t, ping, "host"); got != messageEphemeralPinged {
		t.Fatalf("expected pinged reply, got %q", got)
	}
	if f.recs.pingedUser != "host" {
		t.Fatalf("expected ping to be marked for host, got %q", f.recs.pingedUser)
	}
	stored := f.env.store.stored(f.session.UniqueID())
	if n := len(stored.Resources.Messages.Announcements); n != 2 {
		t.Fatalf("expected recruit announcement persisted, got %d announcements", n)
	}
}
