package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/felloworks/wheelwright/internal/config"
	"github.com/felloworks/wheelwright/internal/eventstore"
)

// HistoryCmd lists recent releases from the history store.
type HistoryCmd struct {
	Limit int `short:"n" default:"10" help:"Maximum number of releases to show"`
}

func (h *HistoryCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}

	store, err := eventstore.NewSQLiteStore(cfg.HistoryPath())
	if err != nil {
		return err
	}
	defer store.Close()

	projection := eventstore.NewReleaseHistoryProjection(store, h.Limit)
	if err := projection.Rebuild(context.Background()); err != nil {
		return err
	}

	releases := projection.GetHistory()
	if len(releases) == 0 {
		fmt.Println("No releases recorded")
		return nil
	}

	fmt.Printf("%-19s  %-28s  %-12s  %-10s  %-9s  %s\n",
		"STARTED", "RELEASE", "REPOSITORY", "TRIGGER", "OUTCOME", "DURATION")
	for _, rel := range releases {
		outcome := rel.Outcome
		if outcome == "" {
			// Still running or recorded before completion.
			outcome = rel.Status
		}
		name := rel.Version
		if rel.Project != "" {
			name = rel.Project + " " + rel.Version
		}
		fmt.Printf("%-19s  %-28s  %-12s  %-10s  %-9s  %s\n",
			rel.StartedAt.Format("2006-01-02 15:04:05"),
			name,
			rel.Repository,
			rel.Trigger,
			outcome,
			rel.Duration.Truncate(time.Millisecond),
		)
	}
	return nil
}
