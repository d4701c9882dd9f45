package session

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStoreTest(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return NewRedisStore(rdb, "as", 0), mr
}

func newFileStoreTest(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "state", "session.json"))
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	return store
}

func backends(t *testing.T) map[string]Store {
	redisStore, _ := newRedisStoreTest(t)
	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  redisStore,
		"file":   newFileStoreTest(t),
	}
}

func testUser(t *testing.T, raw string) User {
	t.Helper()
	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	return u
}

func TestStoreEmptyReturnsNil(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			sess, err := store.Get(context.Background())
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if sess != nil {
				t.Fatalf("expected no session, got %+v", sess)
			}
		})
	}
}

func TestStoreSetThenClearLeavesNothing(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			user := testUser(t, `{"id":7,"role":"user","email":"a@example.com"}`)

			if err := store.Set(ctx, "t1", user, time.Hour); err != nil {
				t.Fatalf("set: %v", err)
			}
			id, err := store.GetOrCreateTrackingID(ctx)
			if err != nil || id == "" {
				t.Fatalf("tracking id: %q %v", id, err)
			}

			sess, err := store.Get(ctx)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if sess.Token != "t1" || sess.User.ID != "7" || sess.User.Role != RoleUser {
				t.Fatalf("unexpected session %+v", sess)
			}
			if sess.TrackingID != id {
				t.Fatalf("expected tracking id %q, got %q", id, sess.TrackingID)
			}
			if sess.ExpiresAt.IsZero() {
				t.Fatal("expected expiry to be recorded")
			}
			var email string
			if !sess.User.Field("email", &email) || email != "a@example.com" {
				t.Fatalf("expected extra user fields preserved, got %q", email)
			}

			for i := 0; i < 2; i++ {
				if err := store.Clear(ctx); err != nil {
					t.Fatalf("clear %d: %v", i, err)
				}
			}
			sess, err = store.Get(ctx)
			if err != nil {
				t.Fatalf("get after clear: %v", err)
			}
			if sess != nil {
				t.Fatalf("expected nothing after clear, got %+v", sess)
			}
		})
	}
}

func TestStoreTrackingIDCreatedOnce(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			first, err := store.GetOrCreateTrackingID(ctx)
			if err != nil {
				t.Fatalf("first: %v", err)
			}
			if err := store.Set(ctx, "t2", testUser(t, `{"id":"u","role":"user"}`), time.Minute); err != nil {
				t.Fatalf("set: %v", err)
			}
			second, err := store.GetOrCreateTrackingID(ctx)
			if err != nil {
				t.Fatalf("second: %v", err)
			}
			if first != second {
				t.Fatalf("tracking id changed across renewal: %q -> %q", first, second)
			}

			if err := store.Clear(ctx); err != nil {
				t.Fatalf("clear: %v", err)
			}
			third, err := store.GetOrCreateTrackingID(ctx)
			if err != nil {
				t.Fatalf("third: %v", err)
			}
			if third == first {
				t.Fatal("expected a fresh tracking id after clear")
			}
		})
	}
}

func TestStoreUnknownExpiry(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := store.Set(ctx, "t", testUser(t, `{"id":1,"role":"user"}`), time.Hour); err != nil {
				t.Fatalf("set: %v", err)
			}
			if err := store.Set(ctx, "t", testUser(t, `{"id":1,"role":"user"}`), 0); err != nil {
				t.Fatalf("set: %v", err)
			}
			sess, err := store.Get(ctx)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if !sess.ExpiresAt.IsZero() {
				t.Fatalf("expected unknown expiry, got %v", sess.ExpiresAt)
			}
		})
	}
}

func TestMemoryStoreConcurrentReadersSeeConsistentPairs(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	users := map[string]User{
		"ta": testUser(t, `{"id":"a","role":"user"}`),
		"tb": testUser(t, `{"id":"b","role":"super_admin"}`),
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			tok := "ta"
			if i%2 == 1 {
				tok = "tb"
			}
			_ = store.Set(ctx, tok, users[tok], time.Minute)
		}
	}()

	for i := 0; i < 2000; i++ {
		sess, _ := store.Get(ctx)
		if sess == nil {
			continue
		}
		if want := users[sess.Token]; sess.User.ID != want.ID {
			close(stop)
			wg.Wait()
			t.Fatalf("torn read: token %q with user %q", sess.Token, sess.User.ID)
		}
	}
	close(stop)
	wg.Wait()
}

func TestRedisStoreCorruptUser(t *testing.T) {
	store, mr := newRedisStoreTest(t)
	if err := mr.Set("as:token", "t"); err != nil {
		t.Fatalf("seed token: %v", err)
	}
	if err := mr.Set("as:user", "{not json"); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	_, err := store.Get(context.Background())
	if !errors.Is(err, ErrCorruptSession) {
		t.Fatalf("expected corrupt sentinel, got %v", err)
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	store, mr := newRedisStoreTest(t)
	mr.Close()

	_, err := store.Get(context.Background())
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected backend unavailable, got %v", err)
	}
}

func TestRedisStoreTTLAppliesToAllKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store := NewRedisStore(rdb, "", time.Hour)
	ctx := context.Background()
	if _, err := store.GetOrCreateTrackingID(ctx); err != nil {
		t.Fatalf("tracking id: %v", err)
	}
	if err := store.Set(ctx, "t", testUser(t, `{"id":1,"role":"user"}`), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	for _, k := range []string{KeyToken, KeyUser, KeyTrackingID, KeyExpiresAt} {
		if ttl := mr.TTL("authclient:" + k); ttl != time.Hour {
			t.Fatalf("key %s ttl = %v", k, ttl)
		}
	}

	mr.FastForward(2 * time.Hour)
	sess, err := store.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sess != nil {
		t.Fatalf("expected expired keys, got %+v", sess)
	}
}

func TestFileStorePermissionsAndCorruption(t *testing.T) {
	store := newFileStoreTest(t)
	ctx := context.Background()

	if err := store.Set(ctx, "t", testUser(t, `{"id":1,"role":"user"}`), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	info, err := os.Stat(store.Path())
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600, got %o", perm)
	}

	if err := os.WriteFile(store.Path(), []byte("{broken"), 0o600); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	if _, err := store.Get(ctx); !errors.Is(err, ErrCorruptSession) {
		t.Fatalf("expected corrupt sentinel, got %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear corrupt: %v", err)
	}
}

func TestUserRoundTripPreservesDocument(t *testing.T) {
	u := testUser(t, `{"id":"42","role":"super_admin","name":"Root"}`)
	out, err := json.Marshal(u)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"id":"42","role":"super_admin","name":"Root"}` {
		t.Fatalf("unexpected document %s", out)
	}

	built, err := json.Marshal(User{ID: "9", Role: RoleUser})
	if err != nil {
		t.Fatalf("marshal built: %v", err)
	}
	if string(built) != `{"id":"9","role":"user"}` {
		t.Fatalf("unexpected built document %s", built)
	}
}
