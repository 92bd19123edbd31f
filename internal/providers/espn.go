package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/confpool/confidence-pool/internal/models"
)

// CacheStore is the slice of the cache service the scoreboard client
// needs.
type CacheStore interface {
	GetSimple(key string, dest interface{}) error
	SetSimple(key string, value interface{}, expiration time.Duration) error
}

// Breaker guards calls against a failing upstream.
type Breaker interface {
	Execute(service string, fn func() (interface{}, error)) (interface{}, error)
}

// ScoreboardEvent is one game as reported by the score source, already
// mapped onto our domain vocabulary. Sync owns persistence; this
// package owns the wire format.
type ScoreboardEvent struct {
	ExternalID   string            `json:"external_id"`
	Season       int               `json:"season"`
	Week         int               `json:"week"`
	KickoffAt    *time.Time        `json:"kickoff_at,omitempty"`
	Status       models.GameStatus `json:"status"`
	HomeTeam     string            `json:"home_team"`
	AwayTeam     string            `json:"away_team"`
	HomeTeamName string            `json:"home_team_name"`
	AwayTeamName string            `json:"away_team_name"`
	HomeScore    int               `json:"home_score"`
	AwayScore    int               `json:"away_score"`
}

// ScoreboardClient fetches NFL week scoreboards from the ESPN site API
type ScoreboardClient struct {
	baseURL     string
	httpClient  *http.Client
	cache       CacheStore
	breaker     Breaker
	rateLimiter *rate.Limiter
	cacheTTL    time.Duration
	logger      *logrus.Logger
}

// NewScoreboardClient creates an ESPN scoreboard client. ratePerMinute
// caps outbound requests; responses are cached briefly so bursts of
// callers inside one poll interval share a fetch.
func NewScoreboardClient(
	baseURL string,
	timeout time.Duration,
	ratePerMinute int,
	cacheTTL time.Duration,
	cache CacheStore,
	breaker Breaker,
	logger *logrus.Logger,
) *ScoreboardClient {
	return &ScoreboardClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		cache:       cache,
		breaker:     breaker,
		rateLimiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(ratePerMinute)), 1),
		cacheTTL:    cacheTTL,
		logger:      logger,
	}
}

// ESPN API response structures
type espnScoreboardResponse struct {
	Events []struct {
		ID           string `json:"id"`
		Date         string `json:"date"`
		Name         string `json:"name"`
		Competitions []struct {
			ID     string `json:"id"`
			Status struct {
				Type struct {
					State     string `json:"state"`
					Completed bool   `json:"completed"`
					Name      string `json:"name"`
				} `json:"type"`
			} `json:"status"`
			Competitors []struct {
				ID       string   `json:"id"`
				HomeAway string   `json:"homeAway"`
				Score    string   `json:"score"`
				Team     espnTeam `json:"team"`
			} `json:"competitors"`
		} `json:"competitions"`
	} `json:"events"`
}

type espnTeam struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
	DisplayName  string `json:"displayName"`
}

// FetchScoreboard returns the events for one week of a season.
func (c *ScoreboardClient) FetchScoreboard(ctx context.Context, season, week int) ([]ScoreboardEvent, error) {
	cacheKey := fmt.Sprintf("espn:scoreboard:%d:%d", season, week)

	// Check cache first
	var cached []ScoreboardEvent
	if err := c.cache.GetSimple(cacheKey, &cached); err == nil {
		return cached, nil
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	url := fmt.Sprintf("%s/scoreboard?dates=%d&seasontype=2&week=%d", c.baseURL, season, week)

	result, err := c.breaker.Execute("scoreboard", func() (interface{}, error) {
		var scoreboard espnScoreboardResponse
		if err := c.makeRequest(ctx, url, &scoreboard); err != nil {
			return nil, err
		}
		return &scoreboard, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scoreboard fetch failed: %w", err)
	}

	scoreboard := result.(*espnScoreboardResponse)
	events := c.mapEvents(scoreboard, season, week)

	if len(events) > 0 {
		if err := c.cache.SetSimple(cacheKey, events, c.cacheTTL); err != nil {
			c.logger.Warnf("Failed to cache scoreboard for week %d: %v", week, err)
		}
	}

	return events, nil
}

func (c *ScoreboardClient) makeRequest(ctx context.Context, url string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(target)
}

func (c *ScoreboardClient) mapEvents(scoreboard *espnScoreboardResponse, season, week int) []ScoreboardEvent {
	events := make([]ScoreboardEvent, 0, len(scoreboard.Events))
	for _, raw := range scoreboard.Events {
		if len(raw.Competitions) == 0 {
			continue
		}
		comp := raw.Competitions[0]

		event := ScoreboardEvent{
			ExternalID: raw.ID,
			Season:     season,
			Week:       week,
			Status:     mapGameStatus(comp.Status.Type.State),
			KickoffAt:  c.parseKickoff(raw.ID, raw.Date),
		}

		for _, competitor := range comp.Competitors {
			score, _ := strconv.Atoi(competitor.Score)
			switch competitor.HomeAway {
			case "home":
				event.HomeTeam = competitor.Team.Abbreviation
				event.HomeTeamName = competitor.Team.DisplayName
				event.HomeScore = score
			case "away":
				event.AwayTeam = competitor.Team.Abbreviation
				event.AwayTeamName = competitor.Team.DisplayName
				event.AwayScore = score
			}
		}

		events = append(events, event)
	}
	return events
}

// parseKickoff handles ESPN's minute-resolution timestamps. An
// unparseable date comes back nil and the game locks on status alone.
func (c *ScoreboardClient) parseKickoff(eventID, raw string) *time.Time {
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04Z07:00"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	c.logger.Warnf("Unparseable kickoff %q for event %s", raw, eventID)
	return nil
}

func mapGameStatus(state string) models.GameStatus {
	switch state {
	case "in":
		return models.GameInProgress
	case "post":
		return models.GameCompleted
	default:
		return models.GameScheduled
	}
}
