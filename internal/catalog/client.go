package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"brewsync/internal"
	"brewsync/internal/config"
)

var (
	ErrMissingCredentials = errors.New("missing Brewfather credentials: set BREWFATHER_USER_ID and BREWFATHER_API_KEY")
	ErrUnexpectedResponse = errors.New("unexpected Brewfather response")
)

const maxAttempts = 5

// Client talks to the Brewfather v2 inventory API.
type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *rate.Limiter
	backoff    func(attempt int) time.Duration
}

// Adjustment is the body of an inventory PATCH. Cost is only sent when set.
type Adjustment struct {
	InventoryAdjust float64  `json:"inventory_adjust"`
	Cost            *float64 `json:"cost,omitempty"`
	CostUnit        string   `json:"costUnit,omitempty"`
}

type inventoryRecord struct {
	ID        string       `json:"_id"`
	Name      string       `json:"name"`
	Inventory looseFloat64 `json:"inventory"`
}

// looseFloat64 accepts a number, a numeric string or null.
type looseFloat64 float64

func (f *looseFloat64) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = looseFloat64(v)
	return nil
}

func NewClient(cfg config.Config) *Client {
	limit := rate.Inf
	if cfg.BrewfatherRateLimitRPS > 0 {
		limit = rate.Limit(cfg.BrewfatherRateLimitRPS)
	}
	timeout := time.Duration(cfg.BrewfatherTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, 1),
		backoff: func(attempt int) time.Duration {
			return time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
		},
	}
}

// ListInventory pages through one inventory category using start_after
// cursors until a short page comes back.
func (c *Client) ListInventory(ctx context.Context, t internal.IngredientType) ([]internal.CatalogEntry, error) {
	pageSize := c.cfg.BrewfatherPageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	out := []internal.CatalogEntry{}
	seen := map[string]struct{}{}
	startAfter := ""
	for {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(pageSize))
		if startAfter != "" {
			q.Set("start_after", startAfter)
		}

		body, err := c.do(ctx, http.MethodGet, "inventory/"+t.CatalogPath(), q, nil, isRetryableStatus)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", t.CatalogPath(), err)
		}

		var page []inventoryRecord
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("list %s: %w: %v", t.CatalogPath(), ErrUnexpectedResponse, err)
		}

		fresh := 0
		for _, rec := range page {
			if _, ok := seen[rec.ID]; ok {
				continue
			}
			seen[rec.ID] = struct{}{}
			fresh++
			out = append(out, internal.CatalogEntry{
				ID:            rec.ID,
				Name:          strings.TrimSpace(rec.Name),
				CurrentAmount: float64(rec.Inventory),
				Unit:          t.CatalogUnit(),
			})
		}

		if len(page) < pageSize || fresh == 0 {
			break
		}
		startAfter = page[len(page)-1].ID
	}
	return out, nil
}

// AdjustInventory applies a stock delta to one inventory item and returns the
// decoded response text. The API answers 200 with "Updated" or
// "Nothing to update", so callers must inspect the text.
func (c *Client) AdjustInventory(ctx context.Context, t internal.IngredientType, id string, adj Adjustment) (string, error) {
	payload, err := json.Marshal(adj)
	if err != nil {
		return "", err
	}
	path := "inventory/" + t.CatalogPath() + "/" + url.PathEscape(id)
	body, err := c.do(ctx, http.MethodPatch, path, nil, payload, func(status int) bool {
		return status == http.StatusTooManyRequests
	})
	if err != nil {
		return "", err
	}
	return decodeTextResponse(body), nil
}

// TestConnection issues the cheapest authenticated read.
func (c *Client) TestConnection(ctx context.Context) error {
	q := url.Values{}
	q.Set("limit", "1")
	_, err := c.do(ctx, http.MethodGet, "recipes", q, nil, isRetryableStatus)
	return err
}

func decodeTextResponse(body []byte) string {
	text := strings.TrimSpace(string(body))
	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal([]byte(text), &s); err == nil {
			return s
		}
	}
	return text
}

func (c *Client) do(ctx context.Context, method, endpoint string, params url.Values, payload []byte, retryable func(int) bool) ([]byte, error) {
	if strings.TrimSpace(c.cfg.BrewfatherUserID) == "" || strings.TrimSpace(c.cfg.BrewfatherAPIKey) == "" {
		return nil, ErrMissingCredentials
	}

	baseURL := strings.TrimRight(c.cfg.BrewfatherBaseURL, "/") + "/"
	u, err := url.Parse(baseURL + endpoint)
	if err != nil {
		return nil, err
	}
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}

	// A PATCH carries an inventory delta; once it may have reached the server
	// it is only sent again on an explicit 429.
	resendable := method == http.MethodGet

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(c.cfg.BrewfatherUserID, c.cfg.BrewfatherAPIKey)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			if !resendable || attempt == maxAttempts {
				return nil, err
			}
			if err := sleepCtx(ctx, c.backoff(attempt)); err != nil {
				return nil, err
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			if !resendable || attempt == maxAttempts {
				return nil, readErr
			}
			if err := sleepCtx(ctx, c.backoff(attempt)); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			lastErr = fmt.Errorf("brewfather api error: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
			if retryable(resp.StatusCode) && attempt < maxAttempts {
				if err := sleepCtx(ctx, c.backoff(attempt)); err != nil {
					return nil, err
				}
				continue
			}
			return nil, lastErr
		}
		return body, nil
	}

	if lastErr == nil {
		lastErr = errors.New("brewfather request failed")
	}
	return nil, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
