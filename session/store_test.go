package session

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/newsdesk/directory"
	"github.com/jmcleod/newsdesk/storage"
	bboltstorage "github.com/jmcleod/newsdesk/storage/bbolt"
	"github.com/jmcleod/newsdesk/storage/memory"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	clock      *fakeClock
	durable    *memory.Repository
	ephemeral  *memory.Repository
	store      *Store
	admin      directory.Principal
	superAdmin directory.Principal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clock:     newFakeClock(),
		durable:   memory.NewRepository(),
		ephemeral: memory.NewRepository(),
	}
	f.store = f.newStore()
	dir := directory.Default()
	var err error
	f.admin, err = dir.Verify("admin", "123")
	require.NoError(t, err)
	f.superAdmin, err = dir.Verify("superadmin", "superadmin123")
	require.NoError(t, err)
	return f
}

// newStore opens another Store over the same repositories, the way a second
// context would.
func (f *fixture) newStore() *Store {
	return NewStore(
		NewBackend(Durable, f.durable),
		NewBackend(Ephemeral, f.ephemeral),
		WithClock(f.clock.Now),
	)
}

func keysIn(t *testing.T, repo storage.Repository, ns string) []string {
	t.Helper()
	keys, err := repo.List(ns)
	require.NoError(t, err)
	return keys
}

func TestCreateWritesExactlyOneBackend(t *testing.T) {
	for _, remember := range []bool{true, false} {
		f := newFixture(t)

		// Seed the opposite backend to prove Create clears it.
		_, err := f.store.Create(f.superAdmin, !remember)
		require.NoError(t, err)

		rec, err := f.store.Create(f.admin, remember)
		require.NoError(t, err)

		durableKeys := keysIn(t, f.durable, string(Durable))
		ephemeralKeys := keysIn(t, f.ephemeral, string(Ephemeral))
		if remember {
			assert.Equal(t, Durable, rec.Backend)
			assert.ElementsMatch(t, []string{"token", "profile", "session"}, durableKeys)
			assert.Empty(t, ephemeralKeys)
		} else {
			assert.Equal(t, Ephemeral, rec.Backend)
			assert.ElementsMatch(t, []string{"token", "profile", "session"}, ephemeralKeys)
			assert.Empty(t, durableKeys)
		}
	}
}

func TestCreateRecord(t *testing.T) {
	f := newFixture(t)
	now := f.clock.Now()

	rec, err := f.store.Create(f.admin, false)
	require.NoError(t, err)

	assert.Equal(t, "admin_token_1_"+strconv.FormatInt(now.UnixMilli(), 10), rec.Token)
	assert.Equal(t, int64(1), rec.Meta.PrincipalID)
	assert.Equal(t, directory.RoleAdmin, rec.Meta.Role)
	assert.True(t, rec.Meta.IssuedAt.Equal(now))
	assert.True(t, rec.Meta.ExpiresAt.Equal(now.Add(24*time.Hour)))
	assert.Equal(t, Profile{
		ID:       1,
		Username: "admin",
		Email:    "admin@hamarasamachar.com",
		Name:     "Admin User",
		Role:     directory.RoleAdmin,
		Phone:    "+911234567890",
	}, rec.Profile)
}

func TestTokensUniqueWithinSameInstant(t *testing.T) {
	f := newFixture(t)
	a, err := f.store.Create(f.admin, false)
	require.NoError(t, err)
	b, err := f.store.Create(f.admin, false)
	require.NoError(t, err)
	assert.NotEqual(t, a.Token, b.Token)
}

func TestPersistedLayout(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.Create(f.admin, true)
	require.NoError(t, err)

	profile, err := f.durable.Get("durable", "profile")
	require.NoError(t, err)
	var p map[string]any
	require.NoError(t, json.Unmarshal(profile, &p))
	assert.Equal(t, "Admin User", p["name"])
	assert.NotContains(t, p, "secret")

	meta, err := f.durable.Get("durable", "session")
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(meta, &m))
	assert.Equal(t, float64(1), m["principalId"])
	assert.Equal(t, "admin", m["role"])
	assert.Equal(t, "2026-03-14T09:30:00Z", m["issuedAt"])
	assert.Equal(t, "2026-03-15T09:30:00Z", m["expiresAt"])
}

func TestExpiryEnforcement(t *testing.T) {
	f := newFixture(t)
	rec, err := f.store.Create(f.admin, true)
	require.NoError(t, err)
	expiresAt := rec.Meta.ExpiresAt

	f.clock.Set(expiresAt.Add(-time.Second))
	p, ok := f.store.Current()
	require.True(t, ok)
	assert.Equal(t, "admin", p.Username)

	f.clock.Set(expiresAt)
	_, ok = f.store.Current()
	assert.False(t, ok, "session is void at exactly expiresAt")

	assert.Empty(t, keysIn(t, f.durable, "durable"))
	assert.Empty(t, keysIn(t, f.ephemeral, "ephemeral"))
}

func TestExpiredAfterDeadline(t *testing.T) {
	f := newFixture(t)
	rec, err := f.store.Create(f.admin, false)
	require.NoError(t, err)

	f.clock.Set(rec.Meta.ExpiresAt.Add(time.Second))
	_, ok := f.store.Current()
	assert.False(t, ok)
	assert.Empty(t, keysIn(t, f.durable, "durable"))
	assert.Empty(t, keysIn(t, f.ephemeral, "ephemeral"))
}

func TestExtendResetsClock(t *testing.T) {
	f := newFixture(t)
	rec, err := f.store.Create(f.admin, false)
	require.NoError(t, err)
	oldExpiry := rec.Meta.ExpiresAt

	f.clock.Advance(3 * time.Hour)
	t1 := f.clock.Now()
	require.True(t, f.store.Extend())

	got, ok := f.store.Session()
	require.True(t, ok)
	assert.True(t, got.Meta.ExpiresAt.Equal(t1.Add(24*time.Hour)))
	assert.True(t, got.Meta.IssuedAt.Equal(rec.Meta.IssuedAt), "issuedAt is not touched")
	assert.Equal(t, rec.Token, got.Token)
	assert.Equal(t, Ephemeral, got.Backend)

	f.clock.Set(oldExpiry)
	_, ok = f.store.Current()
	assert.True(t, ok, "session must outlive its original expiry after extend")
}

func TestExtendWithoutSession(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.store.Extend())

	rec, err := f.store.Create(f.admin, true)
	require.NoError(t, err)
	f.clock.Set(rec.Meta.ExpiresAt.Add(time.Minute))
	assert.False(t, f.store.Extend(), "expired sessions cannot be extended")
}

func TestClearIdempotent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Clear(), "clear on an empty store")

	_, err := f.store.Create(f.admin, true)
	require.NoError(t, err)
	require.NoError(t, f.store.Clear())
	require.NoError(t, f.store.Clear())

	_, ok := f.store.Current()
	assert.False(t, ok)
	assert.Empty(t, keysIn(t, f.durable, "durable"))
	assert.Empty(t, keysIn(t, f.ephemeral, "ephemeral"))
}

func TestRememberMeSurvivesNewContext(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.Create(f.admin, true)
	require.NoError(t, err)

	// A new context starts with an empty ephemeral backend.
	f.ephemeral.Reset()
	p, ok := f.newStore().Current()
	require.True(t, ok)
	assert.Equal(t, int64(1), p.ID)
}

func TestEphemeralGoneWithContext(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.Create(f.admin, false)
	require.NoError(t, err)

	f.ephemeral.Reset()
	_, ok := f.newStore().Current()
	assert.False(t, ok)
	assert.Empty(t, keysIn(t, f.durable, "durable"), "durable storage was never touched")
}

func TestRememberMeSurvivesRestartOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	clock := newFakeClock()
	admin, err := directory.Default().Verify("admin", "123")
	require.NoError(t, err)

	repo, err := bboltstorage.NewRepositoryFromFile(path, nil)
	require.NoError(t, err)
	s1 := NewStore(NewBackend(Durable, repo), NewBackend(Ephemeral, memory.NewRepository()), WithClock(clock.Now))
	created, err := s1.Create(admin, true)
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	repo, err = bboltstorage.NewRepositoryFromFile(path, nil)
	require.NoError(t, err)
	defer repo.Close()
	s2 := NewStore(NewBackend(Durable, repo), NewBackend(Ephemeral, memory.NewRepository()), WithClock(clock.Now))
	got, ok := s2.Session()
	require.True(t, ok)
	assert.Equal(t, created.Token, got.Token)
	assert.Equal(t, Durable, got.Backend)
}

func TestUpdateProfilePreservesSession(t *testing.T) {
	f := newFixture(t)
	rec, err := f.store.Create(f.admin, true)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	name := "New Name"
	p, err := f.store.UpdateProfile(ProfilePatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "New Name", p.Name)
	assert.Equal(t, "admin", p.Username)

	got, ok := f.store.Session()
	require.True(t, ok)
	assert.Equal(t, "New Name", got.Profile.Name)
	assert.Equal(t, rec.Token, got.Token)
	assert.True(t, got.Meta.ExpiresAt.Equal(rec.Meta.ExpiresAt))
	assert.Empty(t, keysIn(t, f.ephemeral, "ephemeral"), "update stays in the active backend")

	// The directory keeps its own copy.
	orig, _ := directory.Default().Lookup(1)
	assert.Equal(t, "Admin User", orig.Name)
}

func TestUpdateProfileNotAuthenticated(t *testing.T) {
	f := newFixture(t)
	name := "x"
	_, err := f.store.UpdateProfile(ProfilePatch{Name: &name})
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestCorruptSessionSelfHeals(t *testing.T) {
	cases := map[string]func(f *fixture){
		"bad meta json": func(f *fixture) {
			require.NoError(t, f.durable.Put("durable", "session", []byte("{not json")))
		},
		"bad profile json": func(f *fixture) {
			require.NoError(t, f.durable.Put("durable", "profile", []byte("[]x")))
		},
		"missing token": func(f *fixture) {
			require.NoError(t, f.durable.Delete("durable", "token"))
		},
		"missing expiry": func(f *fixture) {
			require.NoError(t, f.durable.Put("durable", "session", []byte(`{"principalId":1}`)))
		},
		"null profile": func(f *fixture) {
			require.NoError(t, f.durable.Put("durable", "profile", []byte("null")))
		},
		"empty profile": func(f *fixture) {
			require.NoError(t, f.durable.Put("durable", "profile", []byte("{}")))
		},
		"unknown role": func(f *fixture) {
			require.NoError(t, f.durable.Put("durable", "profile", []byte(`{"id":1,"username":"admin","role":"editor"}`)))
		},
		"meta for another principal": func(f *fixture) {
			meta := fmt.Sprintf(`{"principalId":2,"role":"admin","expiresAt":%q}`,
				f.clock.Now().Add(time.Hour).Format(time.RFC3339))
			require.NoError(t, f.durable.Put("durable", "session", []byte(meta)))
		},
		"unparsable expiry": func(f *fixture) {
			require.NoError(t, f.durable.Put("durable", "session", []byte(`{"principalId":1,"expiresAt":"tomorrow"}`)))
		},
	}
	for name, corrupt := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.store.Create(f.admin, true)
			require.NoError(t, err)
			corrupt(f)

			_, ok := f.store.Current()
			assert.False(t, ok)
			assert.Empty(t, keysIn(t, f.durable, "durable"))
			assert.Empty(t, keysIn(t, f.ephemeral, "ephemeral"))
		})
	}
}

func TestDurableReadFirstForFreshStore(t *testing.T) {
	f := newFixture(t)
	// Two records can only coexist when written by different contexts.
	require.NoError(t, NewBackend(Ephemeral, f.ephemeral).Save(Record{
		Token:   "ephemeral-token",
		Profile: ProfileOf(f.superAdmin),
		Meta:    Meta{PrincipalID: 2, Role: directory.RoleSuperAdmin, IssuedAt: f.clock.Now(), ExpiresAt: f.clock.Now().Add(time.Hour)},
	}))
	require.NoError(t, NewBackend(Durable, f.durable).Save(Record{
		Token:   "durable-token",
		Profile: ProfileOf(f.admin),
		Meta:    Meta{PrincipalID: 1, Role: directory.RoleAdmin, IssuedAt: f.clock.Now(), ExpiresAt: f.clock.Now().Add(time.Hour)},
	}))

	tok, ok := f.newStore().Token()
	require.True(t, ok)
	assert.Equal(t, "durable-token", tok)
}

func TestRecordedBackendIsAuthoritative(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.Create(f.admin, false)
	require.NoError(t, err)

	// Another context sharing durable storage logs in with remember me.
	other := NewStore(NewBackend(Durable, f.durable), NewBackend(Ephemeral, memory.NewRepository()), WithClock(f.clock.Now))
	_, err = other.Create(f.superAdmin, true)
	require.NoError(t, err)

	p, ok := f.store.Current()
	require.True(t, ok)
	assert.Equal(t, int64(1), p.ID, "this context keeps its own ephemeral session")
}

func TestLastWriteWinsAcrossContexts(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.Create(f.admin, true)
	require.NoError(t, err)
	other := f.newStore()

	require.NoError(t, other.Clear())
	assert.False(t, f.store.Extend(), "logout in the other context wins")
	_, ok := f.store.Current()
	assert.False(t, ok)
}

func TestWithLifetime(t *testing.T) {
	f := newFixture(t)
	s := NewStore(NewBackend(Durable, f.durable), NewBackend(Ephemeral, f.ephemeral),
		WithClock(f.clock.Now), WithLifetime(time.Hour), WithLifetime(0))
	assert.Equal(t, time.Hour, s.Lifetime())

	rec, err := s.Create(f.admin, false)
	require.NoError(t, err)
	assert.True(t, rec.Meta.ExpiresAt.Equal(f.clock.Now().Add(time.Hour)))
}
