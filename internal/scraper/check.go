package scraper

import (
	"context"
	"log/slog"
	"time"

	apperrors "sieforeagent/internal/errors"
	"sieforeagent/internal/release"
	"sieforeagent/pkg/contracts/domain"
)

// ReleaseSource returns the most recent published release.
type ReleaseSource interface {
	Latest(ctx context.Context) (*release.Release, error)
}

// Decision is the outcome of an update check.
type Decision struct {
	Available     domain.Period `json:"available"`
	LatestTag     string        `json:"latest_tag,omitempty"`
	LatestRelease time.Time     `json:"latest_release"`
	Released      domain.Period `json:"released"`
	UpToDate      bool          `json:"up_to_date"`
}

// Checker decides whether CONSAR has published a period that has not been
// released yet.
type Checker struct {
	Source   PageSource
	Releases ReleaseSource
	Logger   *slog.Logger
}

// Check compares the latest available period with the latest release.
// When the release tag names a period the periods are compared; otherwise
// the period is new if it ends after the release was published. A
// repository without releases is never up to date.
func (c *Checker) Check(ctx context.Context) (*Decision, error) {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	available, err := LatestPeriod(ctx, c.Source)
	if err != nil {
		return nil, err
	}
	d := &Decision{Available: available}

	latest, err := c.Releases.Latest(ctx)
	switch {
	case apperrors.IsType(err, apperrors.ErrTypeNotFound):
		logger.InfoContext(ctx, "no releases yet", slog.String("available", available.String()))
		return d, nil
	case err != nil:
		return nil, err
	}

	d.LatestTag = latest.TagName
	d.LatestRelease = latest.PublishedAt
	if p, ok := periodOfTag(latest.TagName); ok {
		d.Released = p
		d.UpToDate = !d.Released.Before(available)
	} else {
		end := available.Start().AddDate(0, 1, 0)
		d.UpToDate = !end.After(latest.PublishedAt)
	}

	logger.InfoContext(ctx, "update check",
		slog.String("available", available.String()),
		slog.String("latest_tag", d.LatestTag),
		slog.Time("latest_release", d.LatestRelease),
		slog.Bool("up_to_date", d.UpToDate))
	return d, nil
}

// periodOfTag parses "v2025.09".
func periodOfTag(tag string) (domain.Period, bool) {
	if len(tag) != len("v2025.09") || tag[0] != 'v' || tag[5] != '.' {
		return domain.Period{}, false
	}
	p := domain.Period{Year: tag[1:5], Month: tag[6:]}
	return p, p.Valid()
}
