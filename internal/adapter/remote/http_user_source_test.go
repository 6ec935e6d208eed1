package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const usersJSON = `[
  {
    "id": 1,
    "name": "Leanne Graham",
    "username": "Bret",
    "email": "Sincere@april.biz",
    "address": {
      "street": "Kulas Light",
      "suite": "Apt. 556",
      "city": "Gwenborough",
      "zipcode": "92998-3874",
      "geo": {"lat": "-37.3159", "lng": "81.1496"}
    },
    "phone": "1-770-736-8031 x56442",
    "website": "hildegard.org",
    "company": {
      "name": "Romaguera-Crona",
      "catchPhrase": "Multi-layered client-server neural-net",
      "bs": "harness real-time e-markets"
    }
  }
]`

func newSource(url string) *HTTPUserSource {
	return NewHTTPUserSource(Config{
		URL:              url,
		Timeout:          time.Second,
		FailureThreshold: 2,
		OpenTimeout:      time.Minute,
	}, zap.NewNop())
}

func TestFetchUsers_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(usersJSON))
	}))
	defer srv.Close()

	users, err := newSource(srv.URL).FetchUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)

	u := users[0]
	assert.Equal(t, int64(1), u.ID)
	assert.Equal(t, "Leanne Graham", u.Name)
	assert.Equal(t, "Apt. 556", u.Address.Suite)
	assert.Equal(t, "81.1496", u.Address.Geo.Lng)
	assert.Equal(t, "Multi-layered client-server neural-net", u.Company.CatchPhrase)
	assert.Equal(t, "harness real-time e-markets", u.Company.BS)
}

func TestFetchUsers_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newSource(srv.URL).FetchUsers(context.Background())
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestFetchUsers_InvalidBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not":"a list"`))
	}))
	defer srv.Close()

	_, err := newSource(srv.URL).FetchUsers(context.Background())
	assert.ErrorContains(t, err, "decode users")
}

func TestFetchUsers_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	source := NewHTTPUserSource(Config{URL: srv.URL, Timeout: 50 * time.Millisecond}, zap.NewNop())
	_, err := source.FetchUsers(context.Background())
	assert.Error(t, err)
}

func TestFetchUsers_BreakerOpensWithoutCallingRemote(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	source := newSource(srv.URL)
	for i := 0; i < 2; i++ {
		_, err := source.FetchUsers(context.Background())
		require.ErrorIs(t, err, ErrUnexpectedStatus)
	}

	_, err := source.FetchUsers(context.Background())
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), hits.Load())
}
