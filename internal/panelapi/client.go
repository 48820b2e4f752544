package panelapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Client issues the three panel calls (client_new, client_renew,
// client_info) over plain HTTP GET, each returning a decoded JSON body
// (spec §4.9).
type Client struct {
	HTTP *http.Client

	// Limiter throttles outbound panel calls; most panels are small
	// shared boxes that rate-limit or ban callers hammering client_new
	// in a retry loop across many exhausted inputs at once.
	Limiter *rate.Limiter
}

// defaultPanelRate caps outbound panel-API calls at 2/s with a burst of
// 4, generous for the occasional exhausted-input provisioning call but
// enough to keep a thundering herd of inputs from tripping a panel's own
// abuse protection.
const defaultPanelRate = 2

// NewClient returns a Client using http. If httpClient is nil, a client
// with conservative timeouts is used.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &Client{HTTP: httpClient, Limiter: rate.NewLimiter(defaultPanelRate, 2*defaultPanelRate)}
}

type credentials struct{ username, password string }

// resolveQueryParams substitutes "auto" values: api_key from the panel's
// configured key, username/password from creds (nil outside client_new,
// which carries no account yet).
func resolveQueryParams(params []QueryParam, apiKey string, creds *credentials) ([]QueryParam, error) {
	out := make([]QueryParam, 0, len(params))
	for _, p := range params {
		key := strings.TrimSpace(p.Key)
		if key == "" {
			continue
		}
		value := strings.TrimSpace(p.Value)
		if strings.EqualFold(value, "auto") {
			switch {
			case strings.EqualFold(key, "api_key"):
				if strings.TrimSpace(apiKey) == "" {
					return nil, fmt.Errorf("panel_api: query param %s uses 'auto' but panel_api.api_key is missing", key)
				}
				value = apiKey
			case strings.EqualFold(key, "username"):
				if creds == nil {
					return nil, fmt.Errorf("panel_api: query param %s uses 'auto' but no account username is available", key)
				}
				value = creds.username
			case strings.EqualFold(key, "password"):
				if creds == nil {
					return nil, fmt.Errorf("panel_api: query param %s uses 'auto' but no account password is available", key)
				}
				value = creds.password
			}
		}
		out = append(out, QueryParam{Key: key, Value: value})
	}
	return out, nil
}

func buildPanelURL(base string, params []QueryParam) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("panel_api: invalid url %s: %w", base, err)
	}
	q := u.Query()
	for _, p := range params {
		q.Add(p.Key, p.Value)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string) (any, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("panel_api: rate limit wait: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("panel_api: build request: %w", err)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("panel_api request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("panel_api read response failed: %w", err)
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("panel_api invalid json (http %d): %w", resp.StatusCode, err)
	}
	return v, nil
}

// ClientNew provisions a brand-new account and returns the username,
// password, and (when the panel embeds it in a returned url) base URL
// (spec §4.9 step 4).
func (c *Client) ClientNew(ctx context.Context, cfg Config) (username, password, baseURL string, err error) {
	if err = validateClientNewParams(cfg.ClientNew); err != nil {
		return "", "", "", err
	}
	params, err := resolveQueryParams(cfg.ClientNew, cfg.APIKey, nil)
	if err != nil {
		return "", "", "", err
	}
	rawURL, err := buildPanelURL(cfg.URL, params)
	if err != nil {
		return "", "", "", err
	}
	v, err := c.getJSON(ctx, rawURL)
	if err != nil {
		return "", "", "", err
	}
	obj, ok := firstJSONObject(v)
	if !ok {
		return "", "", "", fmt.Errorf("panel_api: client_new response is not a JSON object/array")
	}
	if !parseBoolish(obj["status"]) {
		return "", "", "", fmt.Errorf("panel_api: client_new status=false")
	}
	if u, p, ok := extractUsernamePasswordFromJSON(obj); ok {
		return u, p, "", nil
	}
	if urlStr, ok := stringField(obj, "url"); ok {
		if u, p, ok := extractUsernamePasswordFromURL(urlStr); ok {
			base, _ := extractBaseURL(urlStr)
			return u, p, base, nil
		}
	}
	return "", "", "", fmt.Errorf("panel_api: client_new response missing username/password (and no parsable url)")
}

// ClientRenew renews an existing account; a non-nil error or a falsy
// status both mean the renewal did not take (spec §4.9 step 3).
func (c *Client) ClientRenew(ctx context.Context, cfg Config, username, password string) error {
	if err := validateClientRenewParams(cfg.ClientRenew); err != nil {
		return err
	}
	params, err := resolveQueryParams(cfg.ClientRenew, cfg.APIKey, &credentials{username, password})
	if err != nil {
		return err
	}
	rawURL, err := buildPanelURL(cfg.URL, params)
	if err != nil {
		return err
	}
	v, err := c.getJSON(ctx, rawURL)
	if err != nil {
		return err
	}
	obj, ok := firstJSONObject(v)
	if !ok {
		return fmt.Errorf("panel_api: client_renew response is not a JSON object/array")
	}
	if !parseBoolish(obj["status"]) {
		return fmt.Errorf("panel_api: client_renew status=false")
	}
	return nil
}

// ClientInfo reads an account's current expiry. ok is false when the
// panel answered but no usable expire value could be parsed out of it.
func (c *Client) ClientInfo(ctx context.Context, cfg Config, username, password string) (expDate int64, ok bool, err error) {
	if err = validateClientInfoParams(cfg.ClientInfo); err != nil {
		return 0, false, err
	}
	params, err := resolveQueryParams(cfg.ClientInfo, cfg.APIKey, &credentials{username, password})
	if err != nil {
		return 0, false, err
	}
	rawURL, err := buildPanelURL(cfg.URL, params)
	if err != nil {
		return 0, false, err
	}
	v, err := c.getJSON(ctx, rawURL)
	if err != nil {
		return 0, false, err
	}
	obj, objOK := firstJSONObject(v)
	if !objOK {
		return 0, false, fmt.Errorf("panel_api: client_info response is not a JSON object/array")
	}
	if !parseBoolish(obj["status"]) {
		return 0, false, fmt.Errorf("panel_api: client_info status=false")
	}
	expire, _ := stringField(obj, "expire")
	expire = strings.TrimSpace(expire)
	if ts, ok := parseExpireTimestamp(expire); ok {
		return ts, true, nil
	}
	if isDateOnlyYYYYMMDD(expire) {
		if ts, ok := parseExpireTimestamp(expire + " 00:00:00"); ok {
			return ts, true, nil
		}
	}
	return 0, false, nil
}

// parseExpireTimestamp accepts either a bare unix-seconds integer or a
// "YYYY-MM-DD HH:MM:SS" timestamp, the two shapes panels are observed to
// return for an account's expire field.
func parseExpireTimestamp(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04:05", s, time.UTC); err == nil {
		return t.Unix(), true
	}
	return 0, false
}
