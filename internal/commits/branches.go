package commits

import (
	"context"

	"github.com/Bada35/Write-With-Jira/internal/upstream"
	"go.uber.org/zap"
)

// FallbackBranches returns the branches scanned when listing fails.
func FallbackBranches() []string {
	return []string{"main", "master", "develop"}
}

// BranchEnumerator lists the branches of a project. It never fails: an
// unsuccessful listing yields FallbackBranches.
type BranchEnumerator struct {
	source Source
	logger *zap.Logger
}

// NewBranchEnumerator creates a branch enumerator over source.
func NewBranchEnumerator(source Source, logger *zap.Logger) *BranchEnumerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BranchEnumerator{source: source, logger: logger}
}

// ListBranches returns the project's branch names in listing order.
func (e *BranchEnumerator) ListBranches(ctx context.Context, project string) []string {
	branches, err := e.source.ListBranches(ctx, project)
	if err != nil {
		fields := []zap.Field{
			zap.String("project", project),
			zap.Strings("fallback", FallbackBranches()),
			zap.Error(err),
		}
		if status := upstream.StatusCode(err); status != 0 {
			fields = append(fields, zap.Int("status", status))
		}
		e.logger.Warn("branch listing failed, using fallback branches", fields...)
		return FallbackBranches()
	}
	return branches
}
