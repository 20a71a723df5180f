package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/friendcards/backend/internal/auth"
	"github.com/friendcards/backend/internal/cards"
	"github.com/friendcards/backend/internal/models"
	"github.com/friendcards/backend/internal/ranking"
	"github.com/friendcards/backend/internal/relationships"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func TestPostgresProfileRepository_CreateFindAndUpdate(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresProfileRepository(testPool)
	profile := createTestProfile(t, repo, "alice", false, "travel", "hiking")

	dup := profile
	dup.PublicID = uuid.NewString()
	dup.Email = "other@example.com"
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict when creating duplicate username, got %v", err)
	}

	byName, err := repo.FindByUsername(ctx, " ALICE ")
	if err != nil {
		t.Fatalf("find by username: %v", err)
	}
	if byName.PublicID != profile.PublicID || len(byName.InterestTags) != 2 {
		t.Fatalf("unexpected profile fetched: %+v", byName)
	}

	byEmail, err := repo.FindByEmail(ctx, profile.Email)
	if err != nil || byEmail.PublicID != profile.PublicID {
		t.Fatalf("find by email: %+v err=%v", byEmail, err)
	}

	if _, err := repo.FindByID(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}

	public := true
	name := "Alice A."
	updated, err := repo.UpdateSettings(ctx, profile.PublicID, models.ProfileSettings{DisplayName: &name, IsPublic: &public}, time.Now().UTC())
	if err != nil {
		t.Fatalf("update settings: %v", err)
	}
	if !updated.IsPublic || updated.DisplayName != name || len(updated.InterestTags) != 2 {
		t.Fatalf("expected partial update to persist, got %+v", updated)
	}

	if _, err := repo.UpdateSettings(ctx, uuid.NewString(), models.ProfileSettings{IsPublic: &public}, time.Now().UTC()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating missing profile, got %v", err)
	}

	bob := createTestProfile(t, repo, "bob", true)
	found, err := repo.FindByIDs(ctx, []string{profile.PublicID, bob.PublicID, uuid.NewString()})
	if err != nil {
		t.Fatalf("find by ids: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(found))
	}
}

func TestPostgresRelationshipStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	profiles := NewPostgresProfileRepository(testPool)
	alice := createTestProfile(t, profiles, "alice", false)
	bob := createTestProfile(t, profiles, "bob", false)
	carol := createTestProfile(t, profiles, "carol", false)

	store := NewPostgresRelationshipStore(testPool)
	base := time.Now().UTC().Truncate(time.Millisecond)

	request := newRelationship(alice.PublicID, bob.PublicID, models.StatusPending, base)
	if err := store.Insert(ctx, request); err != nil {
		t.Fatalf("insert: %v", err)
	}

	duplicate := newRelationship(alice.PublicID, bob.PublicID, models.StatusPending, base)
	if err := store.Insert(ctx, duplicate); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate ordered pair, got %v", err)
	}

	ghost := newRelationship(alice.PublicID, uuid.NewString(), models.StatusPending, base)
	if err := store.Insert(ctx, ghost); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown receiver, got %v", err)
	}

	pending, err := store.ListPending(ctx, bob.PublicID)
	if err != nil || len(pending) != 1 || pending[0].ID != request.ID {
		t.Fatalf("unexpected pending list %+v err=%v", pending, err)
	}

	if err := store.UpdateStatus(ctx, request.ID, models.StatusAccepted, models.StatusDeclined, base); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for stale status, got %v", err)
	}
	if err := store.UpdateStatus(ctx, uuid.NewString(), models.StatusPending, models.StatusAccepted, base); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown record, got %v", err)
	}
	if err := store.UpdateStatus(ctx, request.ID, models.StatusPending, models.StatusAccepted, base.Add(time.Second)); err != nil {
		t.Fatalf("accept: %v", err)
	}

	reverse := newRelationship(bob.PublicID, alice.PublicID, models.StatusAccepted, base.Add(2*time.Second))
	if err := store.Insert(ctx, reverse); err != nil {
		t.Fatalf("insert reverse: %v", err)
	}
	toCarol := newRelationship(alice.PublicID, carol.PublicID, models.StatusAccepted, base.Add(3*time.Second))
	if err := store.Insert(ctx, toCarol); err != nil {
		t.Fatalf("insert carol: %v", err)
	}

	count, err := store.CountAccepted(ctx, alice.PublicID)
	if err != nil || count != 2 {
		t.Fatalf("expected 2 distinct counterparties for alice, got %d err=%v", count, err)
	}
	count, err = store.CountAccepted(ctx, bob.PublicID)
	if err != nil || count != 1 {
		t.Fatalf("expected mutual pair to count once for bob, got %d err=%v", count, err)
	}

	between, err := store.FindAcceptedBetween(ctx, bob.PublicID, alice.PublicID)
	if err != nil || between.ID != reverse.ID {
		t.Fatalf("expected bob's outbound record, got %+v err=%v", between, err)
	}

	following, err := store.ListAccepted(ctx, alice.PublicID, relationships.RoleSender)
	if err != nil {
		t.Fatalf("list following: %v", err)
	}
	if len(following) != 2 || following[0].ID != toCarol.ID || following[1].ID != request.ID {
		t.Fatalf("expected following ordered newest first, got %+v", following)
	}

	if err := store.Delete(ctx, request.ID, models.StatusPending); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting with wrong status, got %v", err)
	}
	if err := store.Delete(ctx, request.ID, models.StatusAccepted); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.FindByOrderedPair(ctx, alice.PublicID, bob.PublicID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected deleted record to be gone, got %v", err)
	}
	if _, err := store.FindByID(ctx, reverse.ID); err != nil {
		t.Fatalf("reverse record must survive: %v", err)
	}
}

func TestPostgresRelationshipStore_ConcurrentInsert(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	profiles := NewPostgresProfileRepository(testPool)
	alice := createTestProfile(t, profiles, "alice", false)
	bob := createTestProfile(t, profiles, "bob", false)
	store := NewPostgresRelationshipStore(testPool)

	const attempts = 4
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.Insert(ctx, newRelationship(alice.PublicID, bob.PublicID, models.StatusPending, time.Now().UTC()))
		}(i)
	}
	wg.Wait()

	var wins int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrConflict):
		default:
			t.Fatalf("unexpected insert error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one insert to win, got %d", wins)
	}
}

func TestPostgresCardStore_UpsertAndDelete(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	profiles := NewPostgresProfileRepository(testPool)
	alice := createTestProfile(t, profiles, "alice", false)
	store := NewPostgresCardStore(testPool)

	if _, err := store.Get(ctx, alice.PublicID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before first put, got %v", err)
	}

	first := cards.CardProfile{PublicID: alice.PublicID, Rank: ranking.RankTwo, Suit: ranking.SuitClubs, ComputedAt: time.Now().UTC().Truncate(time.Millisecond)}
	if err := store.Put(ctx, first); err != nil {
		t.Fatalf("put: %v", err)
	}
	second := first
	second.Rank = ranking.RankFive
	second.FriendsCount = 7
	if err := store.Put(ctx, second); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	loaded, err := store.Get(ctx, alice.PublicID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.Rank != ranking.RankFive || loaded.FriendsCount != 7 || loaded.Suit != ranking.SuitClubs {
		t.Fatalf("expected overwritten card, got %+v", loaded)
	}

	if err := store.Delete(ctx, alice.PublicID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, alice.PublicID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestPostgresSessionStore_SaveFindAndDelete(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	profiles := NewPostgresProfileRepository(testPool)
	owner := createTestProfile(t, profiles, "owner", false)

	store := NewPostgresSessionStore(testPool)
	expires := time.Now().UTC().Add(24 * time.Hour)
	session := auth.Session{
		Token:     uuid.NewString(),
		Kind:      auth.KindRefresh,
		PublicID:  owner.PublicID,
		ExpiresAt: expires,
	}

	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save session: %v", err)
	}

	loaded, err := store.Find(ctx, session.Token)
	if err != nil {
		t.Fatalf("find session: %v", err)
	}
	if loaded.PublicID != session.PublicID || loaded.Kind != auth.KindRefresh || !timesClose(loaded.ExpiresAt, expires, time.Millisecond) {
		t.Fatalf("unexpected session loaded: %+v", loaded)
	}

	updated := session
	updated.ExpiresAt = expires.Add(48 * time.Hour)
	if err := store.Save(ctx, updated); err != nil {
		t.Fatalf("update session: %v", err)
	}
	loaded, err = store.Find(ctx, session.Token)
	if err != nil {
		t.Fatalf("find session after update: %v", err)
	}
	if !timesClose(loaded.ExpiresAt, updated.ExpiresAt, time.Millisecond) {
		t.Fatalf("expected updated expiry, got %v", loaded.ExpiresAt)
	}

	if err := store.Delete(ctx, session.Token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := store.Find(ctx, session.Token); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, session.Token); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound deleting twice, got %v", err)
	}
}

func TestPostgresStores_DriveRelationshipService(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	profiles := NewPostgresProfileRepository(testPool)
	alice := createTestProfile(t, profiles, "alice", false)
	bob := createTestProfile(t, profiles, "bob", false, "jewelry")

	graph := NewPostgresRelationshipStore(testPool)
	cardSvc := cards.NewService(cards.NewCache(NewPostgresCardStore(testPool), time.Hour, nil), graph, profiles, nil)
	svc := relationships.NewService(graph, profiles, cardSvc)

	before, err := cardSvc.Get(ctx, bob.PublicID)
	if err != nil || before.FriendsCount != 0 {
		t.Fatalf("unexpected initial card %+v err=%v", before, err)
	}

	rel, err := svc.Send(ctx, alice.PublicID, "bob")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if rel.Status != models.StatusPending {
		t.Fatalf("expected pending for private target, got %s", rel.Status)
	}
	if _, err := svc.Respond(ctx, bob.PublicID, rel.ID, relationships.DecisionAccept); err != nil {
		t.Fatalf("accept: %v", err)
	}

	after, err := cardSvc.Get(ctx, bob.PublicID)
	if err != nil {
		t.Fatalf("get card: %v", err)
	}
	if after.FriendsCount != 1 || after.Rank != ranking.RankThree || after.Suit != ranking.SuitDiamonds {
		t.Fatalf("expected invalidated card to be recomputed, got %+v", after)
	}
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir := filepath.Join("..", "..", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(migrationsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := pool.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func resetDatabase(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "TRUNCATE TABLE relationships, card_profiles, sessions, profiles CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func createTestProfile(t *testing.T, repo *PostgresProfileRepository, username string, public bool, tags ...string) models.Profile {
	t.Helper()
	now := time.Now().UTC()
	profile := models.Profile{
		PublicID:     uuid.NewString(),
		Username:     username,
		Email:        username + "@example.com",
		Password:     "password-hash",
		DisplayName:  username,
		InterestTags: tags,
		IsPublic:     public,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repo.Create(context.Background(), profile); err != nil {
		t.Fatalf("create test profile: %v", err)
	}
	return profile
}

func newRelationship(sender, receiver string, status models.RelationshipStatus, at time.Time) models.Relationship {
	return models.Relationship{
		ID:         uuid.NewString(),
		SenderID:   sender,
		ReceiverID: receiver,
		Status:     status,
		CreatedAt:  at,
		UpdatedAt:  at,
	}
}

func timesClose(a, b time.Time, delta time.Duration) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= delta
}
