package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"sieforeagent/internal/config"
	apperrors "sieforeagent/internal/errors"
	"sieforeagent/internal/retry"
	"sieforeagent/pkg/contracts/domain"
)

// RateSource provides the observations of a conversion series for a period.
type RateSource interface {
	Observations(ctx context.Context, period domain.Period) ([]domain.RateObservation, error)
}

// banxicoResponse mirrors the SIE API payload:
// {"bmx":{"series":[{"idSerie":"SF43718","datos":[{"fecha":"01/10/2024","dato":"19.6363"}]}]}}
type banxicoResponse struct {
	Bmx struct {
		Series []struct {
			ID     string `json:"idSerie"`
			Title  string `json:"titulo"`
			Points []struct {
				Date  string `json:"fecha"`
				Value string `json:"dato"`
			} `json:"datos"`
		} `json:"series"`
	} `json:"bmx"`
}

// BanxicoClient fetches a series from the Banco de México SIE REST API.
// Requests are throttled and retried.
type BanxicoClient struct {
	baseURL    string
	series     string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	policy     retry.Policy
	logger     *slog.Logger
}

// NewBanxicoClient creates a client from configuration.
func NewBanxicoClient(cfg config.RatesConfig, policy retry.Policy, logger *slog.Logger) *BanxicoClient {
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if cfg.RequestsPerS > 0 {
		limit = rate.Limit(cfg.RequestsPerS)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if policy.Description == "" {
		policy.Description = "fetch " + cfg.Series
	}
	return &BanxicoClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		series:     cfg.Series,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, burst),
		policy:     policy,
		logger:     logger.With(slog.String("component", "banxico")),
	}
}

// Observations returns the series points dated within period.
func (c *BanxicoClient) Observations(ctx context.Context, period domain.Period) ([]domain.RateObservation, error) {
	start := period.Start()
	end := start.AddDate(0, 1, -1)
	return c.Range(ctx, start, end)
}

// Range returns the series points between from and to, inclusive.
func (c *BanxicoClient) Range(ctx context.Context, from, to time.Time) ([]domain.RateObservation, error) {
	url := fmt.Sprintf("%s/%s/datos/%s/%s", c.baseURL, c.series, from.Format("2006-01-02"), to.Format("2006-01-02"))

	obs, err := retry.Value(ctx, c.policy, func(ctx context.Context) ([]domain.RateObservation, error) {
		return c.fetch(ctx, url)
	})
	if err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "series fetched",
		slog.String("series", c.series),
		slog.String("from", from.Format("2006-01-02")),
		slog.String("to", to.Format("2006-01-02")),
		slog.Int("observations", len(obs)))
	return obs, nil
}

func (c *BanxicoClient) fetch(ctx context.Context, url string) ([]domain.RateObservation, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, retry.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Bmx-Token", c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewNetworkError("rate request failed", err).WithContext("series", c.series)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, retry.Permanent(apperrors.NewConfigError(
			fmt.Sprintf("rate API rejected token (HTTP %d)", resp.StatusCode), nil).
			WithContext("series", c.series))
	case resp.StatusCode == http.StatusNotFound:
		return nil, retry.Permanent(apperrors.NewNotFoundError("series " + c.series))
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, apperrors.NewNetworkError(
			fmt.Sprintf("rate API returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil).
			WithContext("series", c.series)
	}

	var payload banxicoResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, apperrors.NewNetworkError("failed to decode rate response", err).WithContext("series", c.series)
	}
	if len(payload.Bmx.Series) == 0 {
		return nil, nil
	}

	points := payload.Bmx.Series[0].Points
	obs := make([]domain.RateObservation, 0, len(points))
	for _, p := range points {
		date, err := time.Parse("02/01/2006", strings.TrimSpace(p.Date))
		if err != nil {
			continue
		}
		value, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(p.Value), ",", ""), 64)
		if err != nil {
			// "N/E" on holidays
			continue
		}
		obs = append(obs, domain.RateObservation{Date: date, Rate: value})
	}
	return obs, nil
}
