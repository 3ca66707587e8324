package content

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/linguabridge-backend/internal/logger"
	"github.com/yungbote/linguabridge-backend/internal/types"
)

// HTTPClient talks to an external content service over its REST API.
type HTTPClient struct {
	log     *logger.Logger
	baseURL string
	http    *http.Client
}

func NewHTTPClient(log *logger.Logger, baseURL string, timeout time.Duration) (*HTTPClient, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("content service base URL required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		log:     log.With("client", "ContentHTTPClient"),
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

func (c *HTTPClient) FetchItems(ctx context.Context, domain string, rng DifficultyRange, excludeIDs []uuid.UUID, limit int) ([]*types.LearningItem, error) {
	q := url.Values{}
	q.Set("domain", domain)
	q.Set("min_difficulty", strconv.FormatFloat(rng.Min, 'f', -1, 64))
	q.Set("max_difficulty", strconv.FormatFloat(rng.Max, 'f', -1, 64))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if len(excludeIDs) > 0 {
		ids := make([]string, 0, len(excludeIDs))
		for _, id := range excludeIDs {
			ids = append(ids, id.String())
		}
		q.Set("exclude", strings.Join(ids, ","))
	}

	endpoint := c.baseURL + "/v1/items?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("content fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("content fetch: unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Items []*types.LearningItem `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("content fetch decode: %w", err)
	}
	return payload.Items, nil
}
