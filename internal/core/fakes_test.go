package core

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/auto-dns/docker-discord-relay/internal/config"
	"github.com/auto-dns/docker-discord-relay/internal/domain"
	"github.com/auto-dns/docker-discord-relay/internal/format"
	"github.com/auto-dns/docker-discord-relay/internal/watermark"
)

const testFleet = "com.docker.compose.project=dgg-services"

var fleetLabels = map[string]string{"com.docker.compose.project": "dgg-services"}

type logLine struct {
	at   time.Time
	text string
}

type fetchCall struct {
	id    string
	since time.Time
	until time.Time
}

type fakeRuntime struct {
	mu         sync.Mutex
	containers []domain.Container
	listErr    error
	listCalls  int
	logs       map[string][]logLine
	fetchErr   map[string]error
	fetches    []fetchCall
	actionErr  error
	actions    []string
}

func newFakeRuntime(containers ...domain.Container) *fakeRuntime {
	return &fakeRuntime{
		containers: containers,
		logs:       map[string][]logLine{},
		fetchErr:   map[string]error{},
	}
}

func container(id, name string) domain.Container {
	return domain.Container{Id: id, Name: "/" + name, Status: "Up 5 minutes", State: "running", Labels: fleetLabels}
}

func (f *fakeRuntime) addLog(id string, at time.Time, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs[id] = append(f.logs[id], logLine{at: at, text: text})
}

func (f *fakeRuntime) ListContainers(_ context.Context, labelFilter string, _ bool) ([]domain.Container, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	if labelFilter != testFleet {
		return nil, nil
	}
	out := make([]domain.Container, len(f.containers))
	copy(out, f.containers)
	return out, nil
}

func (f *fakeRuntime) listCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// FetchLogs returns lines logged strictly after since and no later than until.
func (f *fakeRuntime) FetchLogs(_ context.Context, id string, since, until time.Time) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches = append(f.fetches, fetchCall{id: id, since: since, until: until})
	if err := f.fetchErr[id]; err != nil {
		return nil, err
	}
	var sb strings.Builder
	for _, l := range f.logs[id] {
		if l.at.After(since) && !l.at.After(until) {
			sb.WriteString(l.text + "\n")
		}
	}
	return []byte(sb.String()), nil
}

func (f *fakeRuntime) fetchesFor(id string) []fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fetchCall
	for _, c := range f.fetches {
		if c.id == id {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeRuntime) act(name, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.actionErr != nil {
		return f.actionErr
	}
	f.actions = append(f.actions, name+":"+id)
	return nil
}

func (f *fakeRuntime) Start(_ context.Context, id string) error   { return f.act("start", id) }
func (f *fakeRuntime) Stop(_ context.Context, id string) error    { return f.act("stop", id) }
func (f *fakeRuntime) Restart(_ context.Context, id string) error { return f.act("restart", id) }

type sentMessage struct {
	channelId string
	text      string
}

type fakeChat struct {
	mu       sync.Mutex
	channels []domain.Channel
	listErr  error
	sendErr  error
	failOn   int // fail the nth send (1-based) when sendErr is set; 0 fails all
	sends    int
	sent     []sentMessage
}

func (f *fakeChat) ListChannels(context.Context) ([]domain.Channel, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.channels, nil
}

func (f *fakeChat) Send(_ context.Context, channelId, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends++
	if f.sendErr != nil && (f.failOn == 0 || f.failOn == f.sends) {
		return f.sendErr
	}
	f.sent = append(f.sent, sentMessage{channelId: channelId, text: text})
	return nil
}

func (f *fakeChat) sentTo(channelId string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.sent {
		if m.channelId == channelId {
			out = append(out, m.text)
		}
	}
	return out
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
	return c.t
}

func newTestDirectory(rt containerRuntime) *Directory {
	label, err := domain.ParseFleetLabel(testFleet)
	if err != nil {
		panic(err)
	}
	return NewDirectory(rt, label, true, time.Second, zerolog.Nop())
}

type relayFixture struct {
	runtime *fakeRuntime
	chat    *fakeChat
	store   *watermark.MemoryStore
	clock   *fakeClock
	engine  *RelayEngine
}

func newRelayFixture(rt *fakeRuntime, chat *fakeChat) *relayFixture {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0).UTC()}
	store := watermark.NewMemoryStore(clock.Now())
	cfg := &config.AppConfig{PollInterval: 65, Concurrency: 4, CallTimeout: 5, SelfContainer: "dgg-services-manager"}
	engine := NewRelayEngine(zerolog.Nop(), cfg, newTestDirectory(rt), rt, chat, format.New(config.DefaultFormat()), store, clock.Now)
	return &relayFixture{runtime: rt, chat: chat, store: store, clock: clock, engine: engine}
}
