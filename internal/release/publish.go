package release

import (
	"context"
	"log/slog"
	"os"

	"sieforeagent/internal/approval"
	apperrors "sieforeagent/internal/errors"
	"sieforeagent/internal/ledger"
)

// Creator creates a release.
type Creator interface {
	Create(ctx context.Context, r Release) (*Release, error)
}

// Publisher announces an integrated period as a release.
type Publisher struct {
	Approvals *approval.Manager
	Creator   Creator
	StoreFile string
	Logger    *slog.Logger
}

// Publish creates the release of the approved period. It refuses to run
// unless the approval document is approved.
func (p *Publisher) Publish(ctx context.Context) (*Release, error) {
	a, err := p.Approvals.RequireApproved(ctx)
	if err != nil {
		return nil, err
	}
	records, err := ledger.ReadRecords(a.EnrichedFile)
	if err != nil {
		return nil, err
	}

	var size int64
	if info, err := os.Stat(p.StoreFile); err == nil {
		size = info.Size()
	} else if !os.IsNotExist(err) {
		return nil, apperrors.NewStorageError("failed to stat store", err).WithContext("file", p.StoreFile)
	}

	period := a.Period()
	r, err := p.Creator.Create(ctx, Release{
		TagName: period.Tag(),
		Name:    Title(period),
		Body:    Notes(NotesInput{Approval: *a, Records: records, StoreSize: size}),
	})
	if err != nil {
		return nil, err
	}

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "period released",
		slog.String("period", period.String()),
		slog.String("tag", r.TagName),
		slog.String("url", r.HTMLURL))
	return r, nil
}
