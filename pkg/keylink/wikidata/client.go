package wikidata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sciknow/keylink/pkg/keylink/config"
	"github.com/sciknow/keylink/pkg/keylink/internalerr"
	"github.com/sciknow/keylink/pkg/keylink/textnorm"
)

// The detail endpoint accepts at most this many ids per request.
const batchSize = 50

// Client talks to the Wikidata action API. It owns two per-run caches
// (id -> entity, label+language -> id) and paces outbound requests so
// the service's usage policy is respected even when callers parallelize.
type Client struct {
	apiURL       string
	userAgent    string
	languages    []string
	searchLimit  int
	maxAttempts  int
	baseDelay    time.Duration
	requestDelay time.Duration

	HTTPClient *http.Client

	mu          sync.Mutex
	lastRequest time.Time
	entityCache map[string]Entity
	labelCache  map[string]string
}

// NewClient builds a client from the runtime configuration. One client
// per run: the caches must not be shared across unrelated runs.
func NewClient(cfg config.Config) *Client {
	return &Client{
		apiURL:       cfg.APIURL,
		userAgent:    cfg.UserAgent,
		languages:    cfg.Languages,
		searchLimit:  cfg.SearchLimit,
		maxAttempts:  cfg.MaxAttempts,
		baseDelay:    cfg.BaseDelay(),
		requestDelay: cfg.RequestDelay(),
		entityCache:  make(map[string]Entity),
		labelCache:   make(map[string]string),
	}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 20 * time.Second}
}

// pace enforces the minimum delay between outbound requests.
func (c *Client) pace() {
	c.mu.Lock()
	now := time.Now()
	next := c.lastRequest.Add(c.requestDelay)
	var wait time.Duration
	if next.After(now) {
		wait = next.Sub(now)
		c.lastRequest = next
	} else {
		c.lastRequest = now
	}
	c.mu.Unlock()
	if wait > 0 {
		time.Sleep(wait)
	}
}

// get performs one API call with bounded retries and linear backoff.
func (c *Client) get(ctx context.Context, params url.Values) (*apiEnvelope, error) {
	params.Set("format", "json")
	full := c.apiURL + "?" + params.Encode()

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		c.pace()
		env, err := c.doOnce(ctx, full)
		if err == nil {
			return env, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if attempt < c.maxAttempts {
			time.Sleep(c.baseDelay * time.Duration(attempt))
		}
	}
	return nil, fmt.Errorf("wikidata: %v: %w", lastErr, internalerr.ErrExternalService)
}

func (c *Client) doOnce(ctx context.Context, fullURL string) (*apiEnvelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http status %d", resp.StatusCode)
	}

	var env apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, err
	}
	if env.Error != nil {
		return nil, fmt.Errorf("api error %s: %s", env.Error.Code, env.Error.Info)
	}
	return &env, nil
}

// Search queries the full-text entity search for a normalized term.
func (c *Client) Search(ctx context.Context, term, language string) ([]RawHit, error) {
	return c.search(ctx, textnorm.Normalize(term), language)
}

// SearchLabelOnly restricts matching to literal labels.
func (c *Client) SearchLabelOnly(ctx context.Context, term, language string) ([]RawHit, error) {
	return c.search(ctx, "label:"+textnorm.Normalize(term), language)
}

func (c *Client) search(ctx context.Context, term, language string) ([]RawHit, error) {
	params := url.Values{}
	params.Set("action", "wbsearchentities")
	params.Set("search", term)
	params.Set("language", language)
	params.Set("uselang", language)
	params.Set("type", "item")
	params.Set("limit", fmt.Sprintf("%d", c.searchLimit))
	params.Set("strictlanguage", "0")

	env, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}
	hits := make([]RawHit, 0, len(env.Search))
	for _, h := range env.Search {
		hits = append(hits, RawHit{
			ID:          h.ID,
			Label:       h.Label,
			Description: h.Description,
			Aliases:     h.Aliases,
			Language:    language,
		})
	}
	return hits, nil
}

// GetEntities batch-fetches full entity details, at most 50 ids per
// request. Ids unknown to the service are simply absent from the result.
// Fetched entities are cached for the lifetime of the client.
func (c *Client) GetEntities(ctx context.Context, ids []string) (map[string]Entity, error) {
	out := make(map[string]Entity, len(ids))
	var missing []string
	seen := make(map[string]struct{}, len(ids))

	c.mu.Lock()
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if ent, ok := c.entityCache[id]; ok {
			out[id] = ent
		} else {
			missing = append(missing, id)
		}
	}
	c.mu.Unlock()

	for start := 0; start < len(missing); start += batchSize {
		end := start + batchSize
		if end > len(missing) {
			end = len(missing)
		}
		batch := missing[start:end]

		params := url.Values{}
		params.Set("action", "wbgetentities")
		params.Set("ids", strings.Join(batch, "|"))
		params.Set("props", "labels|descriptions|aliases|claims|sitelinks")
		params.Set("languages", strings.Join(c.languages, "|"))
		params.Set("languagefallback", "1")

		env, err := c.get(ctx, params)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		for id, raw := range env.Entities {
			if raw.Missing != nil {
				continue
			}
			ent := raw.toEntity()
			if ent.ID == "" {
				ent.ID = id
			}
			c.entityCache[id] = ent
			out[id] = ent
		}
		c.mu.Unlock()
	}
	return out, nil
}

// GetEntity fetches a single entity. An id unknown to the service
// yields ErrNotFound.
func (c *Client) GetEntity(ctx context.Context, id string) (Entity, error) {
	ents, err := c.GetEntities(ctx, []string{id})
	if err != nil {
		return Entity{}, err
	}
	ent, ok := ents[id]
	if !ok {
		return Entity{}, fmt.Errorf("entity %s: %w", id, internalerr.ErrNotFound)
	}
	return ent, nil
}

// ResolveLabel turns a human-readable label into an entity id via the
// search endpoints, trying full-text first and literal labels second.
// Outcomes are cached per (label, language).
func (c *Client) ResolveLabel(ctx context.Context, label, language string) (string, bool, error) {
	key := strings.ToLower(label) + "|" + language
	c.mu.Lock()
	if id, ok := c.labelCache[key]; ok {
		c.mu.Unlock()
		return id, id != "", nil
	}
	c.mu.Unlock()

	hits, err := c.Search(ctx, label, language)
	if err != nil {
		return "", false, err
	}
	if len(hits) == 0 {
		hits, err = c.SearchLabelOnly(ctx, label, language)
		if err != nil {
			return "", false, err
		}
	}

	id := ""
	for _, h := range hits {
		if h.ID != "" {
			id = h.ID
			break
		}
	}
	c.mu.Lock()
	c.labelCache[key] = id
	c.mu.Unlock()
	return id, id != "", nil
}

// ResolveLabels resolves a list of labels best-effort: labels that fail
// to resolve (or error out) are silently dropped.
func (c *Client) ResolveLabels(ctx context.Context, labels []string, language string) map[string]struct{} {
	ids := make(map[string]struct{}, len(labels))
	for _, lab := range labels {
		id, ok, err := c.ResolveLabel(ctx, lab, language)
		if err != nil || !ok {
			continue
		}
		if strings.HasPrefix(id, "Q") {
			ids[id] = struct{}{}
		}
	}
	return ids
}

// Labels returns a display label per id in language-priority order,
// falling back to the id itself for unknown entities.
func (c *Client) Labels(ctx context.Context, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}
	ents, err := c.GetEntities(ctx, ids)
	if err != nil {
		return nil, err
	}
	labels := make(map[string]string, len(ids))
	for _, id := range ids {
		if ent, ok := ents[id]; ok {
			labels[id] = ent.LabelIn(c.languages)
		} else {
			labels[id] = id
		}
	}
	return labels, nil
}
