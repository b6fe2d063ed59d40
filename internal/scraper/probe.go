package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"

	"sieforeagent/internal/config"
	apperrors "sieforeagent/internal/errors"
	"sieforeagent/internal/retry"
	"sieforeagent/pkg/contracts/domain"
)

// PageSource returns the rendered text of the statistics page.
type PageSource interface {
	PageText(ctx context.Context) (string, error)
}

// ChromeProbe renders the CONSAR page in a browser. The coverage banner is
// filled in by script, so a plain HTTP fetch does not see it.
type ChromeProbe struct {
	url      string
	headless bool
	timeout  time.Duration
	policy   retry.Policy
	logger   *slog.Logger
}

// NewChromeProbe creates a probe from configuration.
func NewChromeProbe(cfg config.ScraperConfig, policy retry.Policy, logger *slog.Logger) *ChromeProbe {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	if policy.Description == "" {
		policy.Description = "load CONSAR page"
	}
	return &ChromeProbe{
		url:      cfg.URL,
		headless: cfg.Headless,
		timeout:  timeout,
		policy:   policy,
		logger:   logger.With(slog.String("component", "scraper")),
	}
}

// PageText navigates to the page and returns the body text.
func (p *ChromeProbe) PageText(ctx context.Context) (string, error) {
	return retry.Value(ctx, p.policy, p.load)
}

func (p *ChromeProbe) load(ctx context.Context) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.Flag("headless", p.headless))
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancel := context.WithTimeout(browserCtx, p.timeout)
	defer cancel()

	start := time.Now()
	var text string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(p.url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Text("body", &text, chromedp.ByQuery),
	)
	if err != nil {
		return "", apperrors.NewNetworkError("failed to load statistics page", err).WithContext("url", p.url)
	}
	p.logger.DebugContext(ctx, "page loaded",
		slog.String("url", p.url),
		slog.Duration("duration", time.Since(start)),
		slog.Int("chars", len(text)))
	return text, nil
}

// LatestPeriod loads the page and parses the last available period.
func LatestPeriod(ctx context.Context, src PageSource) (domain.Period, error) {
	text, err := src.PageText(ctx)
	if err != nil {
		return domain.Period{}, err
	}
	return ParseAvailablePeriod(text)
}
