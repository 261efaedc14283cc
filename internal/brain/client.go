package brain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	apperrors "alphaminer/internal/errors"
	"alphaminer/internal/logging"
)

const (
	pageSize           = 50
	defaultPollBackoff = 2 * time.Second
)

// Config represents the platform client configuration
type Config struct {
	BaseURL        string
	Email          string
	Password       string
	Region         string
	Universe       string
	Delay          int
	InstrumentType string
	Timeout        time.Duration
	RequestsPerSec float64
	Burst          int

	// Simulation settings applied to every submitted alpha
	Decay          int
	Neutralization string
	Truncation     float64
	Pasteurization string
	UnitHandling   string
	NanHandling    string
	Language       string
}

// Client is an HTTP client for the quantitative research platform
type Client struct {
	config     *Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a new platform client
func NewClient(cfg *Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("platform base URL is required")
	}
	if cfg.Email == "" || cfg.Password == "" {
		return nil, fmt.Errorf("platform credentials are required")
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 2
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 5
	}

	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}, nil
}

// Authenticate logs into the platform and stores the session cookie.
// Authentication failures are fatal to the mining session.
func (c *Client) Authenticate(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/authentication", nil)
	if err != nil {
		return fmt.Errorf("failed to build authentication request: %w", err)
	}
	req.SetBasicAuth(c.config.Email, c.config.Password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.NewAppError(apperrors.ErrCodeAuth, "authentication request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return apperrors.NewAppErrorWithDetails(apperrors.ErrCodeAuth,
			"platform rejected credentials",
			fmt.Sprintf("status %d: %s", resp.StatusCode, string(body)), nil)
	}

	logging.Info("Platform authentication succeeded")
	return nil
}

// ListDatasets retrieves the full dataset catalog for the configured
// region, delay and universe. Failure here is fatal: without a catalog
// there is nothing to mine.
func (c *Client) ListDatasets(ctx context.Context) ([]Dataset, error) {
	var all []Dataset

	offset := 0
	for {
		query := c.scopeQuery()
		query.Set("limit", strconv.Itoa(pageSize))
		query.Set("offset", strconv.Itoa(offset))

		var page datasetsResponse
		if err := c.getJSON(ctx, "/data-sets", query, &page); err != nil {
			return nil, apperrors.WrapError(err, apperrors.ErrCodeDatasetSelection, "failed to list datasets")
		}

		all = append(all, page.Results...)
		offset += pageSize
		if offset >= page.Count || len(page.Results) == 0 {
			break
		}
	}

	logging.WithField("count", len(all)).Info("Fetched dataset catalog")
	return all, nil
}

// ListOperators retrieves the expression operators supported by the platform
func (c *Client) ListOperators(ctx context.Context) ([]Operator, error) {
	var operators []Operator
	if err := c.getJSON(ctx, "/operators", nil, &operators); err != nil {
		return nil, apperrors.WrapError(err, apperrors.ErrCodePlatformAPI, "failed to list operators")
	}
	return operators, nil
}

// GetDataFields retrieves all fields of a dataset, paging 50 at a time
func (c *Client) GetDataFields(ctx context.Context, datasetID string) ([]DataField, error) {
	var all []DataField

	offset := 0
	for {
		query := c.scopeQuery()
		query.Set("dataset.id", datasetID)
		query.Set("limit", strconv.Itoa(pageSize))
		query.Set("offset", strconv.Itoa(offset))

		var page dataFieldsResponse
		if err := c.getJSON(ctx, "/data-fields", query, &page); err != nil {
			return nil, apperrors.WrapError(err, apperrors.ErrCodePlatformAPI,
				fmt.Sprintf("failed to fetch data fields for %s", datasetID))
		}

		all = append(all, page.Results...)
		offset += pageSize
		if offset >= page.Count || len(page.Results) == 0 {
			break
		}
	}

	return all, nil
}

// Simulate submits an expression for backtesting and polls until the
// simulation completes, returning the resulting alpha ID
func (c *Client) Simulate(ctx context.Context, expression string) (string, error) {
	payload := simulationRequest{
		Type: "REGULAR",
		Settings: simulationSettings{
			InstrumentType: c.config.InstrumentType,
			Region:         c.config.Region,
			Universe:       c.config.Universe,
			Delay:          c.config.Delay,
			Decay:          c.config.Decay,
			Neutralization: c.config.Neutralization,
			Truncation:     c.config.Truncation,
			Pasteurization: c.config.Pasteurization,
			UnitHandling:   c.config.UnitHandling,
			NanHandling:    c.config.NanHandling,
			Language:       c.config.Language,
			Visualization:  false,
		},
		Regular: expression,
	}

	resp, err := c.do(ctx, http.MethodPost, "/simulations", nil, payload)
	if err != nil {
		return "", apperrors.WrapError(err, apperrors.ErrCodeSimulation, "failed to submit simulation")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", apperrors.NewAppErrorWithDetails(apperrors.ErrCodeSimulation,
			"simulation submission rejected",
			fmt.Sprintf("status %d: %s", resp.StatusCode, string(body)), nil).
			WithContext("expression", expression)
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return "", apperrors.NewAppError(apperrors.ErrCodeSimulation,
			"simulation response missing progress location", nil)
	}

	return c.pollSimulation(ctx, location)
}

// pollSimulation polls the simulation progress URL until a terminal state
func (c *Client) pollSimulation(ctx context.Context, location string) (string, error) {
	for {
		resp, err := c.do(ctx, http.MethodGet, location, nil, nil)
		if err != nil {
			return "", apperrors.WrapError(err, apperrors.ErrCodeSimulation, "failed to poll simulation")
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return "", apperrors.WrapError(err, apperrors.ErrCodeSimulation, "failed to read simulation status")
		}

		var status simulationStatus
		if err := json.Unmarshal(body, &status); err != nil {
			return "", apperrors.WrapError(err, apperrors.ErrCodeSimulation, "failed to decode simulation status")
		}

		switch status.Status {
		case "COMPLETE", "WARNING":
			if status.Alpha == "" {
				return "", apperrors.NewAppError(apperrors.ErrCodeSimulation,
					"simulation finished without an alpha ID", nil)
			}
			return status.Alpha, nil
		case "ERROR", "FAIL":
			return "", apperrors.NewAppErrorWithDetails(apperrors.ErrCodeSimulation,
				"simulation failed", status.Message, nil)
		}

		backoff := defaultPollBackoff
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := strconv.ParseFloat(retryAfter, 64); err == nil && seconds > 0 {
				backoff = time.Duration(seconds * float64(time.Second))
			}
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// CheckAlpha fetches the in-sample checks of a simulated alpha and extracts
// the Sharpe score and the overall pass/fail verdict
func (c *Client) CheckAlpha(ctx context.Context, alphaID string) (*AlphaCheck, error) {
	var raw alphaCheckResponse
	if err := c.getJSON(ctx, "/alphas/"+alphaID+"/check", nil, &raw); err != nil {
		return nil, apperrors.WrapError(err, apperrors.ErrCodeAlphaCheck,
			fmt.Sprintf("failed to check alpha %s", alphaID))
	}

	if len(raw.IS.Checks) == 0 {
		return nil, apperrors.NewAppError(apperrors.ErrCodeAlphaCheck,
			"alpha check returned no results", nil).WithContext("alpha_id", alphaID)
	}

	check := &AlphaCheck{
		Checks: raw.IS.Checks,
		Passed: true,
	}

	// Sharpe lives in the LOW_SHARPE check; fall back to the first entry
	// when the platform changes check ordering or naming.
	check.Sharpe = raw.IS.Checks[0].Value
	for _, item := range raw.IS.Checks {
		if item.Name == "LOW_SHARPE" {
			check.Sharpe = item.Value
		}
		if item.Result == "FAIL" {
			check.Passed = false
		}
	}

	return check, nil
}

// scopeQuery returns the query parameters shared by catalog endpoints
func (c *Client) scopeQuery() url.Values {
	query := url.Values{}
	query.Set("region", c.config.Region)
	query.Set("delay", strconv.Itoa(c.config.Delay))
	query.Set("universe", c.config.Universe)
	query.Set("instrumentType", c.config.InstrumentType)
	return query
}

// getJSON performs a GET request and decodes the JSON response
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, dest interface{}) error {
	resp, err := c.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return apperrors.NewAppErrorWithDetails(apperrors.ErrCodeAuth,
				"platform session expired or unauthorized",
				fmt.Sprintf("status %d: %s", resp.StatusCode, string(body)), nil)
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return apperrors.NewAppError(apperrors.ErrCodeRateLimit, "platform rate limit exceeded", nil)
		}
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// do performs a rate-limited HTTP request. path may be absolute (progress
// URLs returned by the platform) or relative to the configured base URL.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	target := path
	if len(target) == 0 || target[0] == '/' {
		target = c.config.BaseURL + path
	}
	if query != nil {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}
