package commits

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Detail is one commit with its diff and the branches containing it.
type Detail struct {
	Basic    RawCommit  `json:"basic"`
	Diff     []FileDiff `json:"diff"`
	Branches []string   `json:"branches"`
	Files    []FileStat `json:"files"`
}

// FileStat summarizes the line changes of one file.
type FileStat struct {
	Path    string `json:"path"`
	Change  string `json:"change"`
	Added   int    `json:"added"`
	Removed int    `json:"removed"`
}

// FetchDetail loads a commit, its diff and its branch refs concurrently. Only
// the commit itself is required; a failed diff or refs call leaves that part
// empty.
func FetchDetail(ctx context.Context, source DetailSource, project, sha string, logger *zap.Logger) (Detail, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		basic    RawCommit
		diff     []FileDiff
		branches []string
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		commit, err := source.GetCommit(groupCtx, project, sha)
		if err != nil {
			return fmt.Errorf("get commit %s: %w", sha, err)
		}
		basic = commit
		return nil
	})
	group.Go(func() error {
		files, err := source.CommitDiff(groupCtx, project, sha)
		if err != nil {
			logger.Warn("commit diff unavailable", zap.String("commit", sha), zap.Error(err))
			return nil
		}
		diff = files
		return nil
	})
	group.Go(func() error {
		refs, err := source.CommitRefs(groupCtx, project, sha)
		if err != nil {
			logger.Warn("commit refs unavailable", zap.String("commit", sha), zap.Error(err))
			return nil
		}
		branches = refs
		return nil
	})
	if err := group.Wait(); err != nil {
		return Detail{}, err
	}

	if diff == nil {
		diff = []FileDiff{}
	}
	if branches == nil {
		branches = []string{}
	}
	basic.Branches = nil
	return Detail{
		Basic:    basic,
		Diff:     diff,
		Branches: branches,
		Files:    FileStats(diff),
	}, nil
}

// FileStats counts added and removed lines per file. Diff headers (+++ and
// ---) are not counted.
func FileStats(diff []FileDiff) []FileStat {
	stats := make([]FileStat, 0, len(diff))
	for _, file := range diff {
		stat := FileStat{Path: file.NewPath, Change: changeKind(file)}
		lines := strings.Split(file.Diff, "\n")
		for i, line := range lines {
			switch {
			case countsAs(line, '+', i == len(lines)-1):
				stat.Added++
			case countsAs(line, '-', i == len(lines)-1):
				stat.Removed++
			}
		}
		stats = append(stats, stat)
	}
	return stats
}

func countsAs(line string, marker byte, lastLine bool) bool {
	if len(line) == 0 || line[0] != marker {
		return false
	}
	if len(line) == 1 {
		return !lastLine
	}
	return line[1] != marker
}

func changeKind(file FileDiff) string {
	switch {
	case file.DeletedFile:
		return "deleted"
	case file.NewFile:
		return "added"
	default:
		return "modified"
	}
}
