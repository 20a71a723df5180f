package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/friendcards/backend/internal/auth"
	"github.com/friendcards/backend/internal/cards"
	"github.com/friendcards/backend/internal/logging"
	"github.com/friendcards/backend/internal/models"
	"github.com/friendcards/backend/internal/relationships"
	"github.com/friendcards/backend/internal/repositories"
)

type memProfiles struct {
	mu       sync.Mutex
	profiles map[string]models.Profile
}

func newMemProfiles(profiles ...models.Profile) *memProfiles {
	store := &memProfiles{profiles: make(map[string]models.Profile)}
	for _, p := range profiles {
		store.profiles[p.PublicID] = p
	}
	return store
}

func (s *memProfiles) Create(_ context.Context, profile models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.profiles {
		if existing.Email == profile.Email || existing.Username == profile.Username {
			return repositories.ErrConflict
		}
	}
	s.profiles[profile.PublicID] = profile
	return nil
}

func (s *memProfiles) find(match func(models.Profile) bool) (models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.profiles {
		if match(p) {
			return p, nil
		}
	}
	return models.Profile{}, repositories.ErrNotFound
}

func (s *memProfiles) FindByEmail(_ context.Context, email string) (models.Profile, error) {
	return s.find(func(p models.Profile) bool { return p.Email == email })
}

func (s *memProfiles) FindByUsername(_ context.Context, username string) (models.Profile, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	return s.find(func(p models.Profile) bool { return p.Username == username })
}

func (s *memProfiles) FindByID(_ context.Context, publicID string) (models.Profile, error) {
	return s.find(func(p models.Profile) bool { return p.PublicID == publicID })
}

func (s *memProfiles) FindByIDs(_ context.Context, ids []string) (map[string]models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]models.Profile, len(ids))
	for _, id := range ids {
		if p, ok := s.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *memProfiles) UpdateSettings(_ context.Context, publicID string, settings models.ProfileSettings, at time.Time) (models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[publicID]
	if !ok {
		return models.Profile{}, repositories.ErrNotFound
	}
	if settings.DisplayName != nil {
		p.DisplayName = *settings.DisplayName
	}
	if settings.InterestTags != nil {
		p.InterestTags = settings.InterestTags
	}
	if settings.IsPublic != nil {
		p.IsPublic = *settings.IsPublic
	}
	p.UpdatedAt = at
	s.profiles[publicID] = p
	return p, nil
}

type denyAll struct{}

func (denyAll) Take(string) (time.Duration, bool) { return 2500 * time.Millisecond, false }

type recordingStorage struct {
	mu    sync.Mutex
	saved map[string][]byte
}

func (s *recordingStorage) Save(_ context.Context, name string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == nil {
		s.saved = make(map[string][]byte)
	}
	s.saved[name] = data
	return "https://cdn.example.com/" + name, nil
}

var (
	alice = models.Profile{PublicID: "pid-alice", Username: "alice", Email: "alice@example.com", DisplayName: "Alice", InterestTags: []string{"travel", "hiking"}}
	bob   = models.Profile{PublicID: "pid-bob", Username: "bob", Email: "bob@example.com", DisplayName: "Bob", InterestTags: []string{"jewelry"}, IsPublic: true}
	carol = models.Profile{PublicID: "pid-carol", Username: "carol", Email: "carol@example.com", DisplayName: "Carol"}
)

type testStack struct {
	profiles *memProfiles
	sessions *auth.Manager
	graph    *relationships.MemoryStore
	cards    *cards.Service
	rels     *relationships.Service
	storage  *recordingStorage
}

func newTestStack(t *testing.T, publish bool) *testStack {
	t.Helper()
	stack := &testStack{
		profiles: newMemProfiles(alice, bob, carol),
		sessions: auth.NewManager(time.Minute, time.Hour, auth.NewMemorySessionStore()),
		graph:    relationships.NewMemoryStore(),
	}

	var storage cards.SnapshotStorage
	if publish {
		stack.storage = &recordingStorage{}
		storage = stack.storage
	}
	cache := cards.NewCache(cards.NewMemoryStore(0, nil), time.Hour, nil)
	stack.cards = cards.NewService(cache, stack.graph, stack.profiles, storage)
	stack.rels = relationships.NewService(stack.graph, stack.profiles, stack.cards)
	return stack
}

func (s *testStack) deps() Dependencies {
	return Dependencies{
		Profiles:      s.profiles,
		Sessions:      s.sessions,
		Relationships: s.rels,
		Cards:         s.cards,
	}
}

func (s *testStack) follow(t *testing.T, from, to models.Profile) {
	t.Helper()
	now := time.Now().UTC()
	rel := models.Relationship{ID: from.PublicID + "->" + to.PublicID, SenderID: from.PublicID, ReceiverID: to.PublicID, Status: models.StatusAccepted, CreatedAt: now, UpdatedAt: now}
	if err := s.graph.Insert(context.Background(), rel); err != nil {
		t.Fatalf("seed relationship: %v", err)
	}
}

// newActorRequest builds a request that has already passed authentication.
func newActorRequest(t *testing.T, method, target, actor string, body any) *http.Request {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, target, reader)
	if actor != "" {
		req = req.WithContext(logging.WithActorID(req.Context(), actor))
	}
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}
