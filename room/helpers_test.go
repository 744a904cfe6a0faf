package room

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wfunc/tabletop/broadcast"
	"github.com/wfunc/tabletop/models"
	"github.com/wfunc/tabletop/network"
	"github.com/wfunc/tabletop/persistence"
	"github.com/wfunc/tabletop/timer"
)

type frame struct {
	Type     string                     `json:"type"`
	UserID   string                     `json:"userId"`
	TokenID  string                     `json:"tokenId"`
	Position models.Position            `json:"position"`
	Token    json.RawMessage            `json:"token"`
	Changes  map[string]json.RawMessage `json:"changes"`
	FogState models.FogState            `json:"fogState"`
	Config   models.MapConfig           `json:"config"`
	State    struct {
		Room       network.RoomView `json:"room"`
		YourRole   string           `json:"yourRole"`
		YourUserID string           `json:"yourUserId"`
	} `json:"state"`
}

type mockClient struct {
	userID string
	mu     sync.Mutex
	frames []frame
	closed chan int
}

func newMockClient(userID string) *mockClient {
	return &mockClient{userID: userID, closed: make(chan int, 1)}
}

func (c *mockClient) UserID() string { return c.userID }

func (c *mockClient) Send(data []byte) error {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, f)
	return nil
}

func (c *mockClient) CloseWith(code int, reason string) {
	select {
	case c.closed <- code:
	default:
	}
}

func (c *mockClient) all() []frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]frame, len(c.frames))
	copy(out, c.frames)
	return out
}

func (c *mockClient) ofType(typ string) []frame {
	var out []frame
	for _, f := range c.all() {
		if f.Type == typ {
			out = append(out, f)
		}
	}
	return out
}

func (c *mockClient) last(t *testing.T) frame {
	t.Helper()
	all := c.all()
	require.NotEmpty(t, all)
	return all[len(all)-1]
}

func (c *mockClient) count() int {
	return len(c.all())
}

func (c *mockClient) waitClosed(t *testing.T) int {
	t.Helper()
	select {
	case code := <-c.closed:
		return code
	case <-time.After(2 * time.Second):
		t.Fatalf("client %s was not closed", c.userID)
		return 0
	}
}

// recordingStore wraps the memory store and counts calls.
type recordingStore struct {
	*persistence.Memory
	mu      sync.Mutex
	loads   int
	saves   []models.Snapshot
	loadErr error
	saveErr error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{Memory: persistence.NewMemory()}
}

func (s *recordingStore) Load(ctx context.Context, roomID string) (*models.RoomRecord, error) {
	s.mu.Lock()
	s.loads++
	err := s.loadErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.Memory.Load(ctx, roomID)
}

func (s *recordingStore) Save(ctx context.Context, roomID string, snap models.Snapshot) error {
	s.mu.Lock()
	s.saves = append(s.saves, snap)
	err := s.saveErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Memory.Save(ctx, roomID, snap)
}

func (s *recordingStore) loadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}

func (s *recordingStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saves)
}

func (s *recordingStore) lastSave(t *testing.T) models.Snapshot {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.saves)
	return s.saves[len(s.saves)-1]
}

var testStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	reg   *Registry
	store *recordingStore
	clock *timer.Manual
}

func testOptions() Options {
	return Options{
		Defaults: models.MapConfig{
			GridSize:   60,
			SnapToGrid: true,
			Width:      1920,
			Height:     1080,
		},
		SnapshotDelay: 5 * time.Second,
		EvictionGrace: 30 * time.Second,
		MoveInterval:  33 * time.Millisecond,
		SaveTimeout:   time.Second,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newRecordingStore()
	require.NoError(t, store.Create(context.Background(), "AB12", "Goblin Cave", "gm1"))
	clock := timer.NewManual(testStart)
	reg := NewRegistry(store, broadcast.NewFanout(nil), clock, testOptions(), nil)
	return &fixture{reg: reg, store: store, clock: clock}
}

func (f *fixture) connect(t *testing.T, userID string) (*Room, *mockClient) {
	t.Helper()
	c := newMockClient(userID)
	r, _, err := f.reg.Connect(context.Background(), "AB12", c)
	require.NoError(t, err)
	return r, c
}

func raw(t *testing.T, s string) json.RawMessage {
	t.Helper()
	require.True(t, json.Valid([]byte(s)), s)
	return json.RawMessage(s)
}

func parse(t *testing.T, s string) network.Event {
	t.Helper()
	ev, err := network.ParseEvent([]byte(s))
	require.NoError(t, err)
	return ev
}

// addGoblin makes c add a token and returns its generated id.
func addGoblin(t *testing.T, r *Room, c *mockClient) string {
	t.Helper()
	r.Handle(c, parse(t, `{"type":"ADD_TOKEN","token":{"name":"Goblin"}}`))
	added := c.ofType(network.TypeTokenAdded)
	require.NotEmpty(t, added)
	var tok models.Token
	require.NoError(t, json.Unmarshal(added[len(added)-1].Token, &tok))
	return tok.ID
}
