package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/cognitive/internal/cognitive"
)

// Maintenance keeps persisted model preferences tidy between calls.
type Maintenance struct {
	Provider  cognitive.ModelProvider
	Threshold time.Duration
	Now       func() time.Time
}

// PruneDowntimes drops expired downtimes from the persisted preferences and
// saves them back when anything was removed.
func (m *Maintenance) PruneDowntimes(ctx context.Context) error {
	prefs, err := m.Provider.FetchModelPreferences(ctx)
	if err != nil {
		return fmt.Errorf("fetching preferences: %w", err)
	}
	if prefs == nil {
		return nil
	}

	threshold := m.Threshold
	if threshold <= 0 {
		threshold = cognitive.DefaultDowntimeThreshold
	}
	now := time.Now()
	if m.Now != nil {
		now = m.Now()
	}

	active := cognitive.ActiveDowntimes(prefs.Downtimes, now, threshold)
	removed := len(prefs.Downtimes) - len(active)
	if removed == 0 {
		return nil
	}

	pruned := prefs.Clone()
	pruned.Downtimes = active
	if err := m.Provider.SaveModelPreferences(ctx, pruned); err != nil {
		return fmt.Errorf("saving preferences: %w", err)
	}
	slog.Info("pruned expired downtimes", "removed", removed, "remaining", len(active))
	return nil
}

// CheckCatalog lists installed models so that unreachable backends show up
// in the logs before a generation needs them.
func (m *Maintenance) CheckCatalog(ctx context.Context) error {
	models, err := m.Provider.FetchInstalledModels(ctx)
	if err != nil {
		return fmt.Errorf("listing models: %w", err)
	}
	perIntegration := make(map[string]int)
	for _, model := range models {
		perIntegration[model.Integration]++
	}
	slog.Info("catalog checked", "models", len(models), "integrations", len(perIntegration))
	return nil
}

// Jobs returns the maintenance jobs for the given cron schedule.
func (m *Maintenance) Jobs(schedule string) []Job {
	return []Job{
		{Name: "prune-downtimes", Schedule: schedule, Timeout: time.Minute, Run: m.PruneDowntimes},
		{Name: "check-catalog", Schedule: schedule, Timeout: 2 * time.Minute, Run: m.CheckCatalog},
	}
}
