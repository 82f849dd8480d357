// Package sync implements the one-way incremental sync from Redmine issues to
// local markdown documents: the per-issue decision engine and the project
// orchestrator.
package sync

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/natefinch/atomic"

	"github.com/redmd/redmd/internal/document"
	"github.com/redmd/redmd/internal/journal"
	"github.com/redmd/redmd/internal/logger"
	"github.com/redmd/redmd/internal/redmine"
	"github.com/redmd/redmd/internal/slug"
)

// Action is the outcome of a sync decision for one issue.
type Action string

const (
	// ActionCreated means the local document did not exist and was written.
	ActionCreated Action = "created"
	// ActionUpdated means an existing local document was rewritten.
	ActionUpdated Action = "updated"
	// ActionSkipped means the local document was already up to date.
	ActionSkipped Action = "skipped"
)

// IssueResult reports the outcome of syncing one issue. Failures are carried
// here rather than returned as errors so a batch keeps going.
type IssueResult struct {
	Success  bool
	IssueID  int
	Filename string
	Action   Action
	Message  string
	Changes  []string // which parts changed: "metadata", "comments"
}

// Options control a single sync invocation.
type Options struct {
	DryRun    bool
	OutputDir string
}

// Source is the remote issue source the engine reads from.
type Source interface {
	GetIssue(ctx context.Context, id int, include redmine.Include) (*redmine.Issue, error)
	ListIssues(ctx context.Context, projectID string, filters redmine.ListFilters, pageSize int) ([]redmine.Issue, error)
}

// Engine decides, per issue, whether to create, update or skip the local
// document, and performs the write.
type Engine struct {
	source  Source
	include redmine.Include
	anchors document.Anchors
	trackBy journal.TrackBy
}

// NewEngine creates a sync engine reading from source. include selects the
// sub-resources fetched with each issue; anchors and trackBy configure the
// comment block.
func NewEngine(source Source, include redmine.Include, anchors document.Anchors, trackBy journal.TrackBy) *Engine {
	return &Engine{
		source:  source,
		include: include,
		anchors: anchors,
		trackBy: trackBy,
	}
}

// SyncIssue syncs a single issue into opts.OutputDir. The filename is derived
// from the fetched id and subject. Never panics or returns an error: every
// failure is reported in the result.
func (e *Engine) SyncIssue(ctx context.Context, id int, opts Options) IssueResult {
	return e.syncWithFilename(ctx, id, "", opts)
}

// syncWithFilename is SyncIssue with an optional precomputed filename, used by
// the project orchestrator to eliminate cross-issue filename races.
func (e *Engine) syncWithFilename(ctx context.Context, id int, filename string, opts Options) (res IssueResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("sync: panic while syncing issue #%d: %v", id, r)
			res = IssueResult{
				IssueID:  id,
				Filename: filename,
				Message:  fmt.Sprintf("internal error: %v", r),
			}
		}
	}()

	issue, err := e.source.GetIssue(ctx, id, e.include)
	if err != nil {
		logger.Warn("sync: failed to fetch issue #%d: %v", id, err)
		return IssueResult{
			IssueID:  id,
			Filename: filename,
			Message:  fmt.Sprintf("failed to fetch issue: %s", redmine.UserMessage(err)),
		}
	}

	if filename == "" {
		filename = slug.Filename(issue.ID, issue.Subject)
	}
	return e.syncFetched(issue, filename, opts)
}

// syncFetched runs the decision steps for an already-fetched issue:
// read local, identity check, change detection, build, dry-run or write.
func (e *Engine) syncFetched(issue *redmine.Issue, filename string, opts Options) IssueResult {
	path := filepath.Join(opts.OutputDir, filename)

	local, err := document.Load(path, e.anchors)
	if err != nil {
		return IssueResult{
			IssueID:  issue.ID,
			Filename: filename,
			Message:  fmt.Sprintf("failed to read local document: %v", err),
		}
	}

	// Identity check: a filename collision between two different issues must
	// never be resolved by silently overwriting one of them.
	if local.Frontmatter.ID != 0 && local.Frontmatter.ID != issue.ID {
		logger.Warn("sync: identity conflict at %s: file belongs to issue #%d, fetched #%d",
			path, local.Frontmatter.ID, issue.ID)
		return IssueResult{
			IssueID:  issue.ID,
			Filename: filename,
			Action:   ActionSkipped,
			Message: fmt.Sprintf("identity conflict: %s already belongs to issue %d",
				filename, local.Frontmatter.ID),
		}
	}

	lastID := local.Frontmatter.LastJournalID
	metaChanged := metadataChanged(local.Frontmatter.UpdatedOn, issue.UpdatedOn)
	commentsChanged := journalsChanged(issue.Journals, lastID)

	if !metaChanged && !commentsChanged {
		logger.Debug("sync: issue #%d already up to date", issue.ID)
		return IssueResult{
			Success:  true,
			IssueID:  issue.ID,
			Filename: filename,
			Action:   ActionSkipped,
			Message:  "already up to date",
		}
	}

	action := ActionCreated
	if local.Frontmatter.ID != 0 {
		action = ActionUpdated
	}

	var changes []string
	if metaChanged {
		changes = append(changes, "metadata")
	}
	if commentsChanged {
		changes = append(changes, "comments")
	}

	// Frontmatter is regenerated wholesale from the snapshot, even on a
	// comment-only change: this keeps lastJournalId refreshed atomically with
	// the rest of the header. Only the comment block is merge-additive.
	newEntries := journal.SelectNew(issue.Journals, lastID)
	rendered := journal.Render(newEntries, e.trackBy)
	comments := journal.Merge(local.Comments, rendered)

	doc := document.Document{
		Frontmatter: buildFrontmatter(issue, nextMarker(lastID, issue.Journals)),
		Content:     strings.TrimRight(issue.Description, " \t\n"),
		Comments:    comments,
		HasComments: comments != "",
	}

	if opts.DryRun {
		return IssueResult{
			Success:  true,
			IssueID:  issue.ID,
			Filename: filename,
			Action:   action,
			Message:  fmt.Sprintf("would %s %s (dry run)", verb(action), filename),
			Changes:  changes,
		}
	}

	data, err := doc.Serialize(e.anchors)
	if err != nil {
		return IssueResult{
			IssueID:  issue.ID,
			Filename: filename,
			Message:  fmt.Sprintf("failed to serialize document: %v", err),
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return IssueResult{
			IssueID:  issue.ID,
			Filename: filename,
			Message:  fmt.Sprintf("failed to create output directory: %v", err),
		}
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return IssueResult{
			IssueID:  issue.ID,
			Filename: filename,
			Message:  fmt.Sprintf("failed to write document: %v", err),
		}
	}

	logger.Info("sync: %s %s (issue #%d)", action, filename, issue.ID)
	return IssueResult{
		Success:  true,
		IssueID:  issue.ID,
		Filename: filename,
		Action:   action,
		Message:  fmt.Sprintf("%s %s", action, filename),
		Changes:  changes,
	}
}

// metadataChanged reports whether the frontmatter and content need rebuilding.
// A missing or unparseable local timestamp always means "needs update".
func metadataChanged(localUpdatedOn string, remoteUpdatedOn time.Time) bool {
	if localUpdatedOn == "" {
		return true
	}
	local, err := time.Parse(time.RFC3339, localUpdatedOn)
	if err != nil {
		return true
	}
	return remoteUpdatedOn.After(local)
}

// journalsChanged reports whether the remote history moved past the local
// high-water mark. With no local marker, any remote entry at all counts.
// Past the marker, only entries that would render visible text count: a new
// silent entry alone does not force a rewrite, though the marker still
// advances over it once anything else triggers one.
func journalsChanged(entries []redmine.Journal, lastID *int) bool {
	if lastID == nil {
		return len(entries) > 0
	}
	for _, e := range entries {
		if e.ID > *lastID && strings.TrimSpace(e.Notes) != "" {
			return true
		}
	}
	return false
}

// nextMarker computes the new lastJournalId: the highest id ever seen for this
// issue, monotonically non-decreasing across syncs. Silent entries advance it
// too. Returns nil when no journal has ever been observed.
func nextMarker(lastID *int, entries []redmine.Journal) *int {
	next := journal.MaxID(entries)
	if lastID != nil && *lastID > next {
		next = *lastID
	}
	if next == 0 {
		return nil
	}
	return &next
}

// buildFrontmatter regenerates the full frontmatter from an issue snapshot.
func buildFrontmatter(issue *redmine.Issue, marker *int) document.Frontmatter {
	fm := document.Frontmatter{
		ID:            issue.ID,
		Subject:       issue.Subject,
		Status:        issue.Status.Name,
		Priority:      issue.Priority.Name,
		Author:        issue.Author.Name,
		Project:       issue.Project.Name,
		Tracker:       issue.Tracker.Name,
		CreatedOn:     issue.CreatedOn.UTC().Format(time.RFC3339),
		UpdatedOn:     issue.UpdatedOn.UTC().Format(time.RFC3339),
		LastJournalID: marker,
	}
	if issue.AssignedTo != nil {
		fm.Assignee = issue.AssignedTo.Name
	}

	for _, r := range issue.Relations {
		target := r.IssueToID
		if target == issue.ID {
			target = r.IssueID
		}
		fm.Relations = append(fm.Relations, document.Relation{
			Type:    r.RelationType,
			IssueID: target,
			Delay:   r.Delay,
		})
	}

	for _, a := range issue.Attachments {
		fm.Attachments = append(fm.Attachments, document.Attachment{
			ID:          a.ID,
			Filename:    a.Filename,
			Size:        a.Filesize,
			ContentType: a.ContentType,
			Author:      a.Author.Name,
			CreatedOn:   a.CreatedOn.UTC().Format(time.RFC3339),
			URL:         a.ContentURL,
		})
	}

	return fm
}

// verb renders an action as the infinitive used in dry-run messages.
func verb(a Action) string {
	switch a {
	case ActionCreated:
		return "create"
	case ActionUpdated:
		return "update"
	default:
		return "skip"
	}
}
