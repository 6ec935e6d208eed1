package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
)

var errNetwork = errors.New("dial tcp: connection refused")

func leanne() domain.User {
	return domain.User{
		ID:       1,
		Name:     "Leanne Graham",
		Username: "Bret",
		Email:    "Sincere@april.biz",
		Address:  domain.Address{Street: "Kulas Light", Suite: "Apt. 556", City: "Gwenborough", Zipcode: "92998-3874"},
		Company:  domain.Company{Name: "Romaguera-Crona", CatchPhrase: "Multi-layered client-server neural-net", BS: "harness real-time e-markets"},
	}
}

func seedSnapshot(t *testing.T, cache *mockKeyValueStore, users []domain.User) {
	t.Helper()
	blob, err := json.Marshal(users)
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	cache.data[UsersCacheKey] = blob
}

func TestLoad_FetchSuccess(t *testing.T) {
	cache := newMockKeyValueStore()
	source := &mockUserSource{users: []domain.User{leanne()}}
	loader := NewDirectoryLoader(source, cache, zap.NewNop())

	if loader.Status() != StatusIdle {
		t.Errorf("expected idle status, got %s", loader.Status())
	}

	res := loader.Load(context.Background())

	if res.Source != SourceFresh || !res.Online() {
		t.Errorf("expected fresh result, got %s", res.Source)
	}
	if res.Notice != nil {
		t.Errorf("expected no notice, got %+v", res.Notice)
	}
	if len(res.Users) != 1 || res.Users[0].Name != "Leanne Graham" {
		t.Errorf("unexpected users: %+v", res.Users)
	}
	if !loader.Online() {
		t.Error("expected loader to be online")
	}

	var cached []domain.User
	if err := json.Unmarshal(cache.data[UsersCacheKey], &cached); err != nil {
		t.Fatalf("decode cached snapshot: %v", err)
	}
	if len(cached) != 1 || cached[0] != leanne() {
		t.Errorf("cache does not hold fetched list: %+v", cached)
	}
}

func TestLoad_FetchFailureWithCache(t *testing.T) {
	cache := newMockKeyValueStore()
	seedSnapshot(t, cache, []domain.User{leanne()})
	loader := NewDirectoryLoader(&mockUserSource{err: errNetwork}, cache, zap.NewNop())

	res := loader.Load(context.Background())

	if res.Source != SourceStale {
		t.Errorf("expected stale result, got %s", res.Source)
	}
	if loader.Online() || loader.Status() != StatusStale {
		t.Errorf("expected offline stale loader, got %s", loader.Status())
	}
	if len(res.Users) != 1 || res.Users[0].ID != 1 {
		t.Errorf("expected cached users, got %+v", res.Users)
	}
	if res.Notice == nil || res.Notice.Title != "Offline Mode" || res.Notice.Level != NoticeWarning {
		t.Errorf("expected offline notice, got %+v", res.Notice)
	}
	if !errors.Is(res.Err, ErrNetworkFailure) || !errors.Is(res.Err, errNetwork) {
		t.Errorf("expected wrapped network failure, got: %v", res.Err)
	}
}

func TestLoad_FetchFailureWithoutCache(t *testing.T) {
	loader := NewDirectoryLoader(&mockUserSource{err: errNetwork}, newMockKeyValueStore(), zap.NewNop())

	res := loader.Load(context.Background())

	if res.Source != SourceEmpty {
		t.Errorf("expected empty result, got %s", res.Source)
	}
	if res.Users == nil || len(res.Users) != 0 {
		t.Errorf("expected empty non-nil users, got %+v", res.Users)
	}
	if res.Notice == nil || res.Notice.Message != "No cached data available." || res.Notice.Level != NoticeError {
		t.Errorf("expected no-data notice, got %+v", res.Notice)
	}
	if !errors.Is(res.Err, ErrCacheMiss) || !errors.Is(res.Err, ErrNetworkFailure) {
		t.Errorf("expected cache miss and network failure, got: %v", res.Err)
	}
}

func TestLoad_CorruptCacheIsTreatedAsMiss(t *testing.T) {
	cache := newMockKeyValueStore()
	cache.data[UsersCacheKey] = []byte(`[{"id":1,`)
	loader := NewDirectoryLoader(&mockUserSource{err: errNetwork}, cache, zap.NewNop())

	res := loader.Load(context.Background())

	if res.Source != SourceEmpty {
		t.Errorf("expected empty result, got %s", res.Source)
	}
	if !errors.Is(res.Err, ErrCacheMiss) {
		t.Errorf("expected cache miss, got: %v", res.Err)
	}
}

func TestLoad_CacheWriteFailureStillFresh(t *testing.T) {
	cache := newMockKeyValueStore()
	cache.setErr = errors.New("disk full")
	loader := NewDirectoryLoader(&mockUserSource{users: []domain.User{leanne()}}, cache, zap.NewNop())

	res := loader.Load(context.Background())

	if res.Source != SourceFresh {
		t.Errorf("expected fresh result, got %s", res.Source)
	}
	if len(res.Users) != 1 {
		t.Errorf("expected fetched users, got %+v", res.Users)
	}
	if cache.setHits != 1 {
		t.Errorf("expected one cache write attempt, got %d", cache.setHits)
	}
}

func TestLoad_RefreshReplacesSnapshot(t *testing.T) {
	cache := newMockKeyValueStore()
	seedSnapshot(t, cache, []domain.User{{ID: 9, Name: "Old"}})
	source := &mockUserSource{users: []domain.User{leanne()}}
	loader := NewDirectoryLoader(source, cache, zap.NewNop())

	loader.Load(context.Background())

	if _, err := loader.Lookup(context.Background(), 9); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected old snapshot to be replaced, got: %v", err)
	}
}

func TestLoad_OverlappingCallsShareOneFetch(t *testing.T) {
	source := &mockUserSource{users: []domain.User{leanne()}, release: make(chan struct{})}
	loader := NewDirectoryLoader(source, newMockKeyValueStore(), zap.NewNop())

	var wg sync.WaitGroup
	results := make([]LoadResult, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = loader.Load(context.Background())
		}(i)
	}

	// Give every caller time to join the in-flight fetch
	time.Sleep(50 * time.Millisecond)
	if loader.Status() != StatusFetching {
		t.Errorf("expected fetching status, got %s", loader.Status())
	}
	close(source.release)
	wg.Wait()

	if source.calls.Load() != 1 {
		t.Errorf("expected 1 fetch, got %d", source.calls.Load())
	}
	for i, res := range results {
		if res.Source != SourceFresh {
			t.Errorf("caller %d: expected fresh result, got %s", i, res.Source)
		}
	}
}

func TestLookup(t *testing.T) {
	cache := newMockKeyValueStore()
	seedSnapshot(t, cache, []domain.User{leanne()})
	source := &mockUserSource{}
	loader := NewDirectoryLoader(source, cache, zap.NewNop())

	u, err := loader.Lookup(context.Background(), 1)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if u.Company.Name != "Romaguera-Crona" {
		t.Errorf("unexpected user: %+v", u)
	}

	_, err = loader.Lookup(context.Background(), 999)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}

	if source.calls.Load() != 0 {
		t.Errorf("lookup must not fetch, got %d fetches", source.calls.Load())
	}
}

func TestLookup_NoSnapshot(t *testing.T) {
	loader := NewDirectoryLoader(&mockUserSource{}, newMockKeyValueStore(), zap.NewNop())

	_, err := loader.Lookup(context.Background(), 1)
	if !errors.Is(err, ErrNotFound) || !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected not found with cache miss, got: %v", err)
	}
}

func TestLoad_CancelledCallerDoesNotFailJoinedCaller(t *testing.T) {
	source := &mockUserSource{users: []domain.User{leanne()}, release: make(chan struct{})}
	loader := NewDirectoryLoader(source, newMockKeyValueStore(), zap.NewNop())

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	first := make(chan LoadResult, 1)
	go func() { first <- loader.Load(firstCtx) }()
	time.Sleep(20 * time.Millisecond)

	second := make(chan LoadResult, 1)
	go func() { second <- loader.Load(context.Background()) }()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	res := <-first
	if !errors.Is(res.Err, context.Canceled) {
		t.Errorf("expected cancelled caller to see context.Canceled, got: %v", res.Err)
	}
	if res.Notice != nil {
		t.Errorf("expected no notice for a cancelled caller, got %+v", res.Notice)
	}

	close(source.release)
	res = <-second
	if res.Source != SourceFresh {
		t.Errorf("expected joined caller to get a fresh result, got %s (err: %v)", res.Source, res.Err)
	}
	if loader.Status() != StatusFresh {
		t.Errorf("expected fresh status, got %s", loader.Status())
	}
	if source.calls.Load() != 1 {
		t.Errorf("expected 1 fetch, got %d", source.calls.Load())
	}
}

func TestLoad_AlreadyCancelled(t *testing.T) {
	source := &mockUserSource{users: []domain.User{leanne()}}
	loader := NewDirectoryLoader(source, newMockKeyValueStore(), zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := loader.Load(ctx)

	if !errors.Is(res.Err, context.Canceled) {
		t.Errorf("expected context.Canceled, got: %v", res.Err)
	}
	if source.calls.Load() != 0 {
		t.Errorf("expected no fetch, got %d", source.calls.Load())
	}
	if loader.Status() != StatusIdle {
		t.Errorf("expected idle status, got %s", loader.Status())
	}
}
