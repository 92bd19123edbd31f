package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confpool/confidence-pool/internal/models"
)

type memoryCache struct {
	data map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (m *memoryCache) GetSimple(key string, dest interface{}) error {
	raw, ok := m.data[key]
	if !ok {
		return fmt.Errorf("cache miss: %s", key)
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) SetSimple(key string, value interface{}, expiration time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	return nil
}

type passthroughBreaker struct{}

func (passthroughBreaker) Execute(service string, fn func() (interface{}, error)) (interface{}, error) {
	return fn()
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

const scoreboardFixture = `{
  "events": [
    {
      "id": "401547403",
      "date": "2025-09-07T17:00Z",
      "name": "Chicago Bears at Green Bay Packers",
      "competitions": [
        {
          "id": "401547403",
          "status": {"type": {"state": "in", "completed": false, "name": "STATUS_IN_PROGRESS"}},
          "competitors": [
            {"id": "9", "homeAway": "home", "score": "14", "team": {"id": "9", "abbreviation": "GB", "displayName": "Green Bay Packers"}},
            {"id": "3", "homeAway": "away", "score": "7", "team": {"id": "3", "abbreviation": "CHI", "displayName": "Chicago Bears"}}
          ]
        }
      ]
    },
    {
      "id": "401547404",
      "date": "not-a-date",
      "name": "Detroit Lions at Kansas City Chiefs",
      "competitions": [
        {
          "id": "401547404",
          "status": {"type": {"state": "post", "completed": true, "name": "STATUS_FINAL"}},
          "competitors": [
            {"id": "12", "homeAway": "home", "score": "20", "team": {"id": "12", "abbreviation": "KC", "displayName": "Kansas City Chiefs"}},
            {"id": "8", "homeAway": "away", "score": "21", "team": {"id": "8", "abbreviation": "DET", "displayName": "Detroit Lions"}}
          ]
        }
      ]
    },
    {
      "id": "401547405",
      "date": "2025-09-14T17:00Z",
      "name": "Event without competitions",
      "competitions": []
    }
  ]
}`

func newTestClient(serverURL string, cache CacheStore) *ScoreboardClient {
	return NewScoreboardClient(serverURL, 5*time.Second, 600, time.Minute, cache, passthroughBreaker{}, quietLogger())
}

func TestFetchScoreboard(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		assert.Equal(t, "/scoreboard", r.URL.Path)
		assert.Equal(t, "2025", r.URL.Query().Get("dates"))
		assert.Equal(t, "1", r.URL.Query().Get("week"))
		fmt.Fprint(w, scoreboardFixture)
	}))
	defer server.Close()

	cache := newMemoryCache()
	client := newTestClient(server.URL, cache)

	events, err := client.FetchScoreboard(context.Background(), 2025, 1)
	require.NoError(t, err)
	require.Len(t, events, 2)

	live := events[0]
	assert.Equal(t, "401547403", live.ExternalID)
	assert.Equal(t, models.GameInProgress, live.Status)
	assert.Equal(t, "GB", live.HomeTeam)
	assert.Equal(t, "CHI", live.AwayTeam)
	assert.Equal(t, 14, live.HomeScore)
	assert.Equal(t, 7, live.AwayScore)
	require.NotNil(t, live.KickoffAt)
	assert.Equal(t, time.Date(2025, 9, 7, 17, 0, 0, 0, time.UTC), live.KickoffAt.UTC())

	// Unparseable date degrades to a nil kickoff, not an error.
	final := events[1]
	assert.Equal(t, models.GameCompleted, final.Status)
	assert.Nil(t, final.KickoffAt)
	assert.Equal(t, 21, final.AwayScore)

	// Second call inside the TTL is served from cache.
	again, err := client.FetchScoreboard(context.Background(), 2025, 1)
	require.NoError(t, err)
	assert.Len(t, again, 2)
	assert.Equal(t, 1, requests)
}

func TestFetchScoreboardUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(server.URL, newMemoryCache())

	_, err := client.FetchScoreboard(context.Background(), 2025, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scoreboard fetch failed")
}

func TestMapGameStatus(t *testing.T) {
	assert.Equal(t, models.GameScheduled, mapGameStatus("pre"))
	assert.Equal(t, models.GameInProgress, mapGameStatus("in"))
	assert.Equal(t, models.GameCompleted, mapGameStatus("post"))
	assert.Equal(t, models.GameScheduled, mapGameStatus(""))
}
