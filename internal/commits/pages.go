package commits

import (
	"context"
	"iter"

	"github.com/Bada35/Write-With-Jira/internal/upstream"
	"go.uber.org/zap"
)

// DefaultPageSize is the largest page the Git hosts serve.
const DefaultPageSize = 100

// PageFetcher turns the paginated commit listing into a lazy sequence.
type PageFetcher struct {
	source Source
	logger *zap.Logger
}

// NewPageFetcher creates a page fetcher over source.
func NewPageFetcher(source Source, logger *zap.Logger) *PageFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PageFetcher{source: source, logger: logger}
}

// Pages yields (page number, commits) from page 1 upward. The sequence ends on
// an empty page (not yielded), after a page shorter than pageSize, or on the
// first failed request (page discarded). Breaking out of the loop stops
// fetching.
func (f *PageFetcher) Pages(ctx context.Context, project string, query Query, pageSize int) iter.Seq2[int, []RawCommit] {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return func(yield func(int, []RawCommit) bool) {
		for page := 1; ; page++ {
			if ctx.Err() != nil {
				return
			}
			items, err := f.source.ListCommits(ctx, project, query, page, pageSize)
			if err != nil {
				fields := []zap.Field{
					zap.String("project", project),
					zap.String("ref", query.Ref),
					zap.Int("page", page),
					zap.Error(err),
				}
				if status := upstream.StatusCode(err); status != 0 {
					fields = append(fields, zap.Int("status", status))
				}
				f.logger.Warn("commit page request failed", fields...)
				return
			}
			if len(items) == 0 {
				return
			}
			if !yield(page, items) {
				return
			}
			if len(items) < pageSize {
				return
			}
		}
	}
}
