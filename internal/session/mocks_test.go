package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/foxseedlab/playhost/internal/config"
	"github.com/foxseedlab/playhost/internal/discord"
	"github.com/foxseedlab/playhost/internal/repository"
	"github.com/foxseedlab/playhost/internal/reputation"
	"github.com/foxseedlab/playhost/internal/webhook"
)

var testEpoch = time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type mockStore struct {
	mu       sync.Mutex
	records  map[string]repository.SessionRecord
	adds     int
	updates  int
	addErr   error
	updateFn func(repository.SessionRecord) error
}

func newMockStore() *mockStore {
	return &mockStore{records: make(map[string]repository.SessionRecord)}
}

func (m *mockStore) AddSession(_ context.Context, rec repository.SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.addErr != nil {
		return m.addErr
	}
	m.adds++
	m.records[rec.UniqueID] = cloneRecord(rec)
	return nil
}

func (m *mockStore) UpdateSession(_ context.Context, rec repository.SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateFn != nil {
		if err := m.updateFn(rec); err != nil {
			return err
		}
	}
	m.updates++
	m.records[rec.UniqueID] = cloneRecord(rec)
	return nil
}

func (m *mockStore) GetSession(_ context.Context, uniqueID string) (*repository.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[uniqueID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneRecord(rec)
	return &out, nil
}

func (m *mockStore) ListLiveSessions(_ context.Context) ([]repository.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []repository.SessionRecord
	for _, rec := range m.records {
		if rec.State.Live() {
			out = append(out, cloneRecord(rec))
		}
	}
	return out, nil
}

func (m *mockStore) stored(uniqueID string) repository.SessionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneRecord(m.records[uniqueID])
}

type mockMembers struct {
	mu      sync.Mutex
	members map[string]discord.Member
}

func newMockMembers(ids ...string) *mockMembers {
	m := &mockMembers{members: make(map[string]discord.Member)}
	for _, id := range ids {
		m.members[id] = discord.Member{ID: id, DisplayName: "user " + id}
	}
	return m
}

func (m *mockMembers) ResolveMember(_ context.Context, userID string) (*discord.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	member, ok := m.members[userID]
	if !ok {
		return nil, nil
	}
	return &member, nil
}

func (m *mockMembers) AddRole(_ context.Context, userID, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	member := m.members[userID]
	member.RoleIDs = append(member.RoleIDs, roleID)
	m.members[userID] = member
	return nil
}

func (m *mockMembers) RemoveRole(_ context.Context, _, _ string) error {
	return nil
}

type scoreChange struct {
	userID string
	delta  float64
	force  bool
}

type mockRecommender struct {
	mu      sync.Mutex
	changes []scoreChange
}

func (m *mockRecommender) AddRecommendationScore(_ context.Context, userID string, delta float64, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes = append(m.changes, scoreChange{userID: userID, delta: delta, force: force})
	return nil
}

func (m *mockRecommender) snapshot() []scoreChange {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]scoreChange(nil), m.changes...)
}

type scheduled struct {
	at time.Time
	fn func()
}

type mockScheduler struct {
	mu        sync.Mutex
	tasks     map[string]scheduled
	cancelled []string
}

func newMockScheduler() *mockScheduler {
	return &mockScheduler{tasks: make(map[string]scheduled)}
}

func (m *mockScheduler) Schedule(key string, at time.Time, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[key] = scheduled{at: at, fn: fn}
}

func (m *mockScheduler) Cancel(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = append(m.cancelled, key)
	_, ok := m.tasks[key]
	delete(m.tasks, key)
	return ok
}

func (m *mockScheduler) task(key string) (scheduled, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[key]
	return t, ok
}

type reported struct {
	err error
	msg string
}

type mockReporter struct {
	mu      sync.Mutex
	reports []reported
}

func (m *mockReporter) Report(_ context.Context, err error, msg string, _ ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, reported{err: err, msg: msg})
}

func (m *mockReporter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reports)
}

type mockWebhook struct {
	mu       sync.Mutex
	payloads []webhook.SessionSummaryPayload
}

func (m *mockWebhook) SendSessionSummary(_ context.Context, payload webhook.SessionSummaryPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloads = append(m.payloads, payload)
	return nil
}

type mockPresenter struct {
	mu          sync.Mutex
	resources   repository.Resources
	createErr   error
	reloadErrs  map[discord.ResourceKind]error
	teardownErr map[discord.TeardownStep]error
	calls       []string
	teardowns   []discord.TeardownStep
	channels    map[string]bool
}

func newMockPresenter(saved *repository.Resources) *mockPresenter {
	p := &mockPresenter{
		reloadErrs:  make(map[discord.ResourceKind]error),
		teardownErr: make(map[discord.TeardownStep]error),
		channels:    make(map[string]bool),
	}
	if saved != nil {
		p.resources = *saved
		p.channels[saved.Channels.TextChannelID] = true
	}
	return p
}

func (p *mockPresenter) record(call string) {
	p.calls = append(p.calls, call)
}

func (p *mockPresenter) Create(_ context.Context, view discord.SessionView) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("create")
	if p.createErr != nil {
		return p.createErr
	}
	p.resources = repository.Resources{
		Channels: repository.ChannelHandles{CategoryID: "cat-" + view.ID, TextChannelID: "text-" + view.ID},
		Roles:    repository.RoleHandles{SessionRoleID: "role-" + view.ID},
		Messages: repository.MessageHandles{
			ControlMessageID: "control-" + view.ID,
			Announcements:    []repository.MessageRef{{ChannelID: "announce", MessageID: "ann-" + view.ID}},
		},
	}
	p.channels["text-"+view.ID] = true
	return nil
}

func (p *mockPresenter) Reconnect(_ context.Context, kind discord.ResourceKind) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("reconnect:" + string(kind))
	return p.reloadErrs[kind]
}

func (p *mockPresenter) Teardown(_ context.Context, step discord.TeardownStep) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.teardowns = append(p.teardowns, step)
	return p.teardownErr[step]
}

func (p *mockPresenter) RemoveAnnouncements(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("remove_announcements")
	p.resources.Messages.Announcements = nil
	return nil
}

func (p *mockPresenter) BlueprintChanged(_ context.Context, _ discord.SessionView) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("blueprint")
	return nil
}

func (p *mockPresenter) PlayerJoined(_ context.Context, _ discord.SessionView, member discord.Member) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("joined:" + member.ID)
	return nil
}

func (p *mockPresenter) PlayerLeft(_ context.Context, _ discord.SessionView, member discord.Member) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("left:" + member.ID)
	return nil
}

func (p *mockPresenter) Ending(_ context.Context, _ discord.SessionView, by discord.Member, forced bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if forced {
		p.record("ending_forced:" + by.ID)
	} else {
		p.record("ending:" + by.ID)
	}
	return nil
}

func (p *mockPresenter) Recruit(_ context.Context, view discord.SessionView) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("recruit")
	p.resources.Messages.Announcements = append(p.resources.Messages.Announcements,
		repository.MessageRef{ChannelID: "announce", MessageID: "recruit-" + view.ID})
	return nil
}

func (p *mockPresenter) OwnsChannel(channelID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channels[channelID]
}

func (p *mockPresenter) Resources() repository.Resources {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resources
}

func (p *mockPresenter) callLog() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *mockPresenter) teardownLog() []discord.TeardownStep {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]discord.TeardownStep(nil), p.teardowns...)
}

type mockRecommendations struct {
	decision   reputation.GiveDecision
	canPing    bool
	nextPing   time.Time
	gives      [][2]string
	pingedUser string
}

func (m *mockRecommendations) GiveRecommendation(_ context.Context, giverID, recipientID string) (reputation.GiveDecision, error) {
	m.gives = append(m.gives, [2]string{giverID, recipientID})
	return m.decision, nil
}

func (m *mockRecommendations) CanPing(_ context.Context, _ string) (bool, time.Time, error) {
	return m.canPing, m.nextPing, nil
}

func (m *mockRecommendations) MarkPinged(_ context.Context, userID string) error {
	m.pingedUser = userID
	return nil
}

type testEnv struct {
	deps        *Deps
	clock       *fakeClock
	store       *mockStore
	members     *mockMembers
	recommender *mockRecommender
	scheduler   *mockScheduler
	reporter    *mockReporter
	webhook     *mockWebhook

	mu         sync.Mutex
	presenters []*mockPresenter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		clock:       &fakeClock{now: testEpoch},
		store:       newMockStore(),
		members:     newMockMembers("host", "alice", "bob", "carol"),
		recommender: &mockRecommender{},
		scheduler:   newMockScheduler(),
		reporter:    &mockReporter{},
		webhook:     &mockWebhook{},
	}
	env.deps = &Deps{
		Config: &config.Config{
			SessionEndingDelay: 5 * time.Minute,
			Recommendation:     config.Recommendation{KickPenalty: 25},
			Payout: config.Payout{
				PlayerScorePerMinute: 1,
				PlayerJoinBonus:      5,
				HostScorePerMinute:   2,
				HostJoinBonus:        10,
				MinimumMinutes:       1,
			},
		},
		Store:       env.store,
		Members:     env.members,
		Recommender: env.recommender,
		Scheduler:   env.scheduler,
		Reporter:    env.reporter,
		Webhook:     env.webhook,
		Now:         env.clock.Now,
	}
	return env
}

func (e *testEnv) presenterFactory() discord.PresenterFactory {
	return func(_ discord.SessionView, saved *repository.Resources) discord.Presenter {
		p := newMockPresenter(saved)
		e.mu.Lock()
		e.presenters = append(e.presenters, p)
		e.mu.Unlock()
		return p
	}
}

func (e *testEnv) lastPresenter() *mockPresenter {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.presenters[len(e.presenters)-1]
}

func testBlueprint() repository.Blueprint {
	return repository.Blueprint{Name: "Friday survival", Type: "casual", Edition: "java", MaxPlayers: 2}
}

// startSession runs a new session through setup with its own presenter.
func (e *testEnv) startSession(t *testing.T) (*Session, *mockPresenter) {
	t.Helper()
	p := newMockPresenter(nil)
	s := newSession(e.deps, repository.SessionRecord{
		ID:        "1a2b3c4d",
		UniqueID:  "unique-1",
		State:     repository.SessionStateNew,
		Blueprint: testBlueprint(),
		HostID:    "host",
	}, p, nil)
	if err := s.Setup(context.Background()); err != nil {
		t.Fatalf("Setup returned error: %v", err)
	}
	return s, p
}
