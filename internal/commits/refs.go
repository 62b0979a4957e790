package commits

import (
	"context"
	"fmt"

	"github.com/Bada35/Write-With-Jira/internal/upstream"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultRefsConcurrency = 8

// RefEnricher fills RawCommit.Branches for a page of commits concurrently.
type RefEnricher struct {
	source Source
	limit  int
	logger *zap.Logger
}

// NewRefEnricher creates an enricher running at most limit lookups at once.
func NewRefEnricher(source Source, limit int, logger *zap.Logger) *RefEnricher {
	if limit <= 0 {
		limit = defaultRefsConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RefEnricher{source: source, limit: limit, logger: logger}
}

// Enrich returns a copy of raws with branch refs attached. A non-success refs
// response substitutes UnknownBranch for that commit; a transport failure of
// any lookup fails the whole page.
func (e *RefEnricher) Enrich(ctx context.Context, project string, raws []RawCommit) ([]RawCommit, error) {
	enriched := make([]RawCommit, len(raws))
	copy(enriched, raws)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.limit)
	for i := range enriched {
		group.Go(func() error {
			refs, err := e.source.CommitRefs(groupCtx, project, enriched[i].ID)
			if err != nil {
				status := upstream.StatusCode(err)
				if status == 0 {
					return fmt.Errorf("commit refs %s: %w", enriched[i].ID, err)
				}
				e.logger.Debug("commit refs unavailable",
					zap.String("project", project),
					zap.String("commit", enriched[i].ID),
					zap.Int("status", status),
				)
				refs = []string{UnknownBranch}
			}
			enriched[i].Branches = refs
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return enriched, nil
}
