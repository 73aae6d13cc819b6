package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/open-feature/flagmigrate/pkg/model"
)

const (
	DefaultBaseURL   = "https://app.launchdarkly.com"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10

	apiPrefix       = "/api/v2"
	maxResponseSize = 50 * 1024 * 1024
)

type HTTPClientConfiguration struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// requests per second, zero or less disables throttling
	RateLimit float64
}

// HTTPClient talks to the flag service REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewHTTPClient(cfg HTTPClientConfiguration) *HTTPClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    limiter,
	}
}

// WithHTTPClient returns a copy of the client using the given http.Client.
func (c *HTTPClient) WithHTTPClient(httpClient *http.Client) *HTTPClient {
	clone := *c
	clone.httpClient = httpClient
	return &clone
}

func (c *HTTPClient) GetProject(ctx context.Context, key string) (model.Project, error) {
	var project model.Project
	err := c.do(ctx, http.MethodGet, "/projects/"+url.PathEscape(key), nil, nil, &project)
	if err != nil {
		return model.Project{}, fmt.Errorf("unable to get project %s: %w", key, err)
	}
	return project, nil
}

func (c *HTTPClient) ListFlags(ctx context.Context, projectKey string) ([]model.FeatureFlag, error) {
	var list model.FlagList
	// summary=0 asks for the full per-environment configuration
	query := url.Values{"summary": []string{"0"}}
	err := c.do(ctx, http.MethodGet, "/flags/"+url.PathEscape(projectKey), query, nil, &list)
	if err != nil {
		return nil, fmt.Errorf("unable to list flags of project %s: %w", projectKey, err)
	}
	return list.Items, nil
}

func (c *HTTPClient) GetFlag(ctx context.Context, projectKey string, flagKey string) (model.FeatureFlag, error) {
	var flag model.FeatureFlag
	err := c.do(ctx, http.MethodGet, flagPath(projectKey, flagKey), nil, nil, &flag)
	if err != nil {
		return model.FeatureFlag{}, fmt.Errorf("unable to get flag %s/%s: %w", projectKey, flagKey, err)
	}
	return flag, nil
}

func (c *HTTPClient) CreateFlag(ctx context.Context, projectKey string, payload model.FlagCreatePayload) (model.FeatureFlag, error) {
	var flag model.FeatureFlag
	err := c.do(ctx, http.MethodPost, "/flags/"+url.PathEscape(projectKey), nil, payload, &flag)
	if err != nil {
		return model.FeatureFlag{}, fmt.Errorf("unable to create flag %s/%s: %w", projectKey, payload.Key, err)
	}
	return flag, nil
}

func (c *HTTPClient) PatchFlag(ctx context.Context, projectKey string, flagKey string, plan model.PatchPlan, comment string) (model.FeatureFlag, error) {
	var flag model.FeatureFlag
	body := model.PatchComment{Comment: comment, Patch: plan}
	err := c.do(ctx, http.MethodPatch, flagPath(projectKey, flagKey), nil, body, &flag)
	if err != nil {
		return model.FeatureFlag{}, fmt.Errorf("unable to patch flag %s/%s: %w", projectKey, flagKey, err)
	}
	return flag, nil
}

func flagPath(projectKey string, flagKey string) string {
	return "/flags/" + url.PathEscape(projectKey) + "/" + url.PathEscape(flagKey)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// do performs one authenticated request. Retrying is left to the caller, which
// knows whether the operation is safe to repeat.
func (c *HTTPClient) do(ctx context.Context, method string, path string, query url.Values, body any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &model.ServiceError{Kind: model.KindTimeout, Message: "waiting for rate limiter", Err: err}
	}

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("unable to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	u := c.baseURL + apiPrefix + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("unable to create request: %w", err)
	}
	req.Header.Set("Authorization", c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &model.ServiceError{Kind: model.KindOf(err), Message: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return &model.ServiceError{Kind: model.KindOf(err), StatusCode: resp.StatusCode, Message: "reading response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := strings.TrimSpace(string(respBody))
		var eb errorBody
		if json.Unmarshal(respBody, &eb) == nil && eb.Message != "" {
			message = eb.Message
		}
		return model.ErrorFromStatus(resp.StatusCode, message)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unable to parse response of %s %s: %w", method, path, err)
	}
	return nil
}
