package sync

import (
	"context"
	gosync "sync"
	"time"

	"github.com/redmd/redmd/internal/logger"
	"github.com/redmd/redmd/internal/redmine"
	"github.com/redmd/redmd/internal/slug"
)

// ProjectOptions control a whole-project sync.
type ProjectOptions struct {
	Options
	StatusFilter string
	UpdatedSince time.Time
	PageSize     int
}

// ProjectError is one failed issue within a project sync.
type ProjectError struct {
	IssueID int
	Error   string
}

// ProjectResult aggregates the per-issue outcomes of a project sync.
// Success is true iff no issue failed.
type ProjectResult struct {
	Success     bool
	TotalIssues int
	Processed   int
	Created     int
	Updated     int
	Skipped     int
	Failed      int
	Errors      []ProjectError
}

// SyncProject fetches all matching issues of a project and syncs each of them.
// Target filenames are precomputed sequentially against a fresh dedupe set, so
// two issues slugging to the same name get distinct files instead of racing.
// The per-issue syncs then all run concurrently: their network calls are
// already gated by the client's shared in-flight limit, so no additional bound
// is applied here. A failure fetching the issue list itself is reported as a
// single synthetic error with issue id 0.
func (e *Engine) SyncProject(ctx context.Context, projectID string, opts ProjectOptions) ProjectResult {
	filters := redmine.ListFilters{
		StatusID:     opts.StatusFilter,
		UpdatedSince: opts.UpdatedSince,
	}

	issues, err := e.source.ListIssues(ctx, projectID, filters, opts.PageSize)
	if err != nil {
		logger.Error("sync: failed to list issues for project %s: %v", projectID, err)
		return ProjectResult{
			Errors: []ProjectError{{IssueID: 0, Error: redmine.UserMessage(err)}},
		}
	}

	logger.Info("sync: project %s: %d issues to check", projectID, len(issues))

	filenames := make([]string, len(issues))
	dedupe := slug.NewDedupe()
	for i, issue := range issues {
		filenames[i] = dedupe.Filename(issue.ID, issue.Subject)
	}

	results := make([]IssueResult, len(issues))
	var wg gosync.WaitGroup
	for i := range issues {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = e.syncWithFilename(ctx, issues[i].ID, filenames[i], opts.Options)
		}()
	}
	wg.Wait()

	res := ProjectResult{TotalIssues: len(issues)}
	for _, r := range results {
		res.Processed++
		if !r.Success {
			res.Failed++
			res.Errors = append(res.Errors, ProjectError{IssueID: r.IssueID, Error: r.Message})
			continue
		}
		switch r.Action {
		case ActionCreated:
			res.Created++
		case ActionUpdated:
			res.Updated++
		case ActionSkipped:
			res.Skipped++
		}
	}
	res.Success = res.Failed == 0

	logger.Info("sync: project %s done: %d created, %d updated, %d skipped, %d failed",
		projectID, res.Created, res.Updated, res.Skipped, res.Failed)
	return res
}
