package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

// UsersCacheKey is the cache key holding the last fetched user snapshot.
const UsersCacheKey = "cached_users"

type LoadSource string

const (
	SourceFresh LoadSource = "fresh"
	SourceStale LoadSource = "stale"
	SourceEmpty LoadSource = "empty"
)

type DirectoryStatus string

const (
	StatusIdle     DirectoryStatus = "idle"
	StatusFetching DirectoryStatus = "fetching"
	StatusFresh    DirectoryStatus = "fresh"
	StatusStale    DirectoryStatus = "stale"
)

type NoticeLevel string

const (
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a user-facing message produced while loading the directory.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Title   string      `json:"title"`
	Message string      `json:"message"`
}

var (
	offlineNotice = Notice{
		Level:   NoticeWarning,
		Title:   "Offline Mode",
		Message: "Showing cached data. Please check your internet connection.",
	}
	noDataNotice = Notice{
		Level:   NoticeError,
		Title:   "Error",
		Message: "No cached data available.",
	}
)

// LoadResult is the outcome of one directory load. Err is informational:
// the load itself always yields a usable (possibly empty) user list.
type LoadResult struct {
	Source LoadSource    `json:"source"`
	Users  []domain.User `json:"users"`
	Notice *Notice       `json:"notice,omitempty"`
	Err    error         `json:"-"`
}

// Online reports whether the result came from a live fetch.
func (r LoadResult) Online() bool {
	return r.Source == SourceFresh
}

// DirectoryLoader reads the user directory network first and falls back to
// the last cached snapshot when the fetch fails.
type DirectoryLoader struct {
	source port.UserSource
	cache  port.KeyValueStore
	log    *zap.Logger
	tracer trace.Tracer

	group singleflight.Group

	mu     sync.RWMutex
	status DirectoryStatus
}

func NewDirectoryLoader(source port.UserSource, cache port.KeyValueStore, log *zap.Logger) *DirectoryLoader {
	return &DirectoryLoader{
		source: source,
		cache:  cache,
		log:    log,
		tracer: otel.Tracer("github.com/rl1809/storefront/internal/core/service"),
		status: StatusIdle,
	}
}

// Load fetches the directory once. Overlapping calls share a single fetch
// and receive the same result. The shared fetch is detached from any one
// caller's cancellation; a caller whose ctx ends stops waiting and gets an
// empty result carrying ctx.Err(), without a notice or a status change.
func (l *DirectoryLoader) Load(ctx context.Context) LoadResult {
	if err := ctx.Err(); err != nil {
		return cancelledResult(err)
	}

	shared := context.WithoutCancel(ctx)
	ch := l.group.DoChan(UsersCacheKey, func() (any, error) {
		return l.load(shared), nil
	})
	select {
	case res := <-ch:
		return res.Val.(LoadResult)
	case <-ctx.Done():
		return cancelledResult(ctx.Err())
	}
}

func cancelledResult(err error) LoadResult {
	return LoadResult{Source: SourceEmpty, Users: []domain.User{}, Err: err}
}

func (l *DirectoryLoader) load(ctx context.Context) LoadResult {
	ctx, span := l.tracer.Start(ctx, "DirectoryLoader.Load")
	defer span.End()

	l.setStatus(StatusFetching)

	users, err := l.source.FetchUsers(ctx)
	if err == nil {
		if users == nil {
			users = []domain.User{}
		}
		l.setStatus(StatusFresh)
		if err := l.writeSnapshot(ctx, users); err != nil {
			l.log.Warn("failed to cache users", zap.Error(err))
		}
		span.SetAttributes(
			attribute.String("directory.source", string(SourceFresh)),
			attribute.Int("directory.users", len(users)),
		)
		return LoadResult{Source: SourceFresh, Users: users}
	}

	l.setStatus(StatusStale)
	l.log.Info("network error, loading cached users", zap.Error(err))
	fetchErr := fmt.Errorf("%w: %w", ErrNetworkFailure, err)

	cached, err := l.readSnapshot(ctx)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			l.log.Warn("cached users unreadable", zap.Error(err))
			err = fmt.Errorf("%w: %w", ErrCacheMiss, err)
		}
		span.SetAttributes(attribute.String("directory.source", string(SourceEmpty)))
		notice := noDataNotice
		return LoadResult{
			Source: SourceEmpty,
			Users:  []domain.User{},
			Notice: &notice,
			Err:    errors.Join(fetchErr, err),
		}
	}

	span.SetAttributes(
		attribute.String("directory.source", string(SourceStale)),
		attribute.Int("directory.users", len(cached)),
	)
	notice := offlineNotice
	return LoadResult{Source: SourceStale, Users: cached, Notice: &notice, Err: fetchErr}
}

// Lookup finds a user in the cached snapshot. It never touches the network,
// so without a snapshot every lookup reports ErrNotFound.
func (l *DirectoryLoader) Lookup(ctx context.Context, id int64) (domain.User, error) {
	users, err := l.readSnapshot(ctx)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			l.log.Warn("cached users unreadable", zap.Int64("user_id", id), zap.Error(err))
		}
		return domain.User{}, fmt.Errorf("user %d: %w: %w", id, ErrNotFound, err)
	}

	u, ok := domain.FindUser(users, id)
	if !ok {
		return domain.User{}, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return u, nil
}

func (l *DirectoryLoader) Status() DirectoryStatus {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.status
}

func (l *DirectoryLoader) Online() bool {
	return l.Status() == StatusFresh
}

func (l *DirectoryLoader) setStatus(s DirectoryStatus) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status = s
}

func (l *DirectoryLoader) writeSnapshot(ctx context.Context, users []domain.User) error {
	blob, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("marshal users: %w", err)
	}
	if err := l.cache.Set(ctx, UsersCacheKey, blob); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}
	return nil
}

func (l *DirectoryLoader) readSnapshot(ctx context.Context) ([]domain.User, error) {
	blob, err := l.cache.Get(ctx, UsersCacheKey)
	if errors.Is(err, port.ErrKeyNotFound) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("read cached users: %w", err)
	}

	var users []domain.User
	if err := json.Unmarshal(blob, &users); err != nil {
		return nil, fmt.Errorf("unmarshal cached users: %w", err)
	}
	return users, nil
}
