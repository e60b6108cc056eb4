// Package gitclient turns local git history into activities.
package gitclient

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/huangsam/recap/internal/contract"
	"github.com/huangsam/recap/internal/textsim"
	"github.com/huangsam/recap/schema"
)

// GitClient defines the git operations the commit source relies on.
type GitClient = contract.GitClient

// CommitSource serves commit tasks for repository scopes and general tasks
// for the working repository.
type CommitSource struct {
	client      GitClient
	workingRepo string
	log         *slog.Logger
}

var _ contract.ActivitySource = &CommitSource{} // Compile-time check

// NewCommitSource creates a commit source. workingRepo backs general tasks and may be empty.
func NewCommitSource(client GitClient, workingRepo string, log *slog.Logger) *CommitSource {
	return &CommitSource{
		client:      client,
		workingRepo: workingRepo,
		log:         contract.LoggerOrDefault(log).With("component", "git"),
	}
}

// Name implements the ActivitySource interface.
func (s *CommitSource) Name() string { return "git" }

// Supports implements the ActivitySource interface.
func (s *CommitSource) Supports(kind schema.TaskKind) bool {
	switch kind {
	case schema.CommitsKind:
		return true
	case schema.GeneralKind:
		return s.workingRepo != ""
	default:
		return false
	}
}

// Fetch implements the ActivitySource interface.
func (s *CommitSource) Fetch(ctx context.Context, task schema.Task) ([]schema.Activity, error) {
	var (
		repo  string
		query string
	)
	switch spec := task.Spec.(type) {
	case schema.CommitsSpec:
		repo = spec.Repo
	case schema.GeneralSpec:
		if s.workingRepo == "" {
			return nil, fmt.Errorf("%w: no working repository for general task %s", schema.ErrNoSource, task.ID)
		}
		repo, query = s.workingRepo, spec.Query
	case schema.PullRequestsSpec, schema.IssuesSpec, schema.MessagesSpec:
		return nil, fmt.Errorf("%w: git cannot serve %s tasks", schema.ErrNoSource, task.Kind())
	default:
		return nil, fmt.Errorf("%w: %T", schema.ErrUnknownTaskShape, task.Spec)
	}

	out, err := s.client.GetCommitLog(ctx, repo, task.RangeStart, task.RangeEnd)
	if err != nil {
		return nil, err
	}
	activities := ParseCommitLog(out, repo)
	if query != "" {
		activities = FilterByQuery(activities, query)
	}
	s.log.Debug("fetched commits", "task", task.ID, "repo", repo, "count", len(activities))
	return activities, nil
}

// FilterByQuery keeps activities whose title or body shares a token with query.
func FilterByQuery(activities []schema.Activity, query string) []schema.Activity {
	want := textsim.Tokens(query)
	if len(want) == 0 {
		return activities
	}
	var out []schema.Activity
	for _, a := range activities {
		have := textsim.Tokens(a.Title + " " + a.Body)
		for w := range want {
			if _, ok := have[w]; ok {
				out = append(out, a)
				break
			}
		}
	}
	return out
}
