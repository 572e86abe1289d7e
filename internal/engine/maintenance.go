package engine

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/calebsage/fable/internal/store"
)

// Maintenance defaults.
const (
	cleanupAgeDays       = 30
	cleanupMaxScore      = 4.0
	refreshWindowDays    = 7
	refreshBoost         = 0.5
	consolidatePrefixLen = 20
)

// acquireMaintenance serializes the maintenance operations: cleanup and
// consolidation both delete facts, so they must not overlap on a story.
func (e *Engine) acquireMaintenance(ctx context.Context) error {
	select {
	case e.maintMu <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) releaseMaintenance() {
	<-e.maintMu
}

// Cleanup deletes stale low-value facts: older than days, scoring under
// 4.0, and unreferenced for the same span. All three conditions must hold,
// so a recently referenced fact is kept no matter how low it scores.
// Returns the number of facts removed.
func (e *Engine) Cleanup(ctx context.Context, days int) (int, error) {
	if err := e.acquireMaintenance(ctx); err != nil {
		return 0, err
	}
	defer e.releaseMaintenance()

	if days <= 0 {
		days = cleanupAgeDays
	}
	cutoff := time.Now().AddDate(0, 0, -days).UnixMilli()
	return e.Store.CleanupFacts(cutoff, cleanupMaxScore)
}

// RefreshImportance reinforces facts referenced in the last seven days with
// a +0.5 boost, capped at 10.0. There is no downward decay anywhere;
// staleness is only ever expressed through Cleanup's age check. Returns the
// number of facts boosted.
func (e *Engine) RefreshImportance(ctx context.Context) (int, error) {
	if err := e.acquireMaintenance(ctx); err != nil {
		return 0, err
	}
	defer e.releaseMaintenance()

	cutoff := time.Now().AddDate(0, 0, -refreshWindowDays).UnixMilli()
	return e.Store.BoostRecentFacts(cutoff, refreshBoost)
}

// Consolidate folds a story's near-duplicate facts together. Facts group
// by type plus the first twenty characters of their title; within each
// group the highest-importance fact survives, absorbing the others'
// content (skipping fragments it already contains) and their source
// references. The whole pass commits atomically. Returns the number of
// facts absorbed.
func (e *Engine) Consolidate(ctx context.Context, storyID string) (int, error) {
	if err := e.acquireMaintenance(ctx); err != nil {
		return 0, err
	}
	defer e.releaseMaintenance()

	facts, err := e.Store.StoryFacts(storyID, "")
	if err != nil {
		return 0, err
	}

	type groupKey struct {
		factType string
		prefix   string
	}
	groups := make(map[groupKey][]store.MemoryFact)
	var order []groupKey
	for _, f := range facts {
		key := groupKey{f.FactType, clip(f.Title, consolidatePrefixLen)}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], f)
	}

	var updates []store.FactUpdate
	var deleteIDs []string
	absorbed := 0

	for _, key := range order {
		group := groups[key]
		if len(group) <= 1 {
			continue
		}

		// StoryFacts orders by importance descending, so the keeper leads.
		keep := group[0]
		content := keep.Content
		sources := append([]string(nil), keep.SourceMessageIDs...)
		seen := make(map[string]bool, len(sources))
		for _, id := range sources {
			seen[id] = true
		}

		var extra []string
		for _, dup := range group[1:] {
			if !strings.Contains(content, dup.Content) {
				extra = append(extra, dup.Content)
			}
			for _, id := range dup.SourceMessageIDs {
				if !seen[id] {
					seen[id] = true
					sources = append(sources, id)
				}
			}
			deleteIDs = append(deleteIDs, dup.ID)
			absorbed++
		}

		if len(extra) > 0 {
			content += summaryDelimiter + strings.Join(extra, summaryDelimiter)
		}
		updates = append(updates, store.FactUpdate{
			ID:               keep.ID,
			Content:          content,
			SourceMessageIDs: sources,
		})
	}

	if absorbed == 0 {
		return 0, nil
	}
	if err := e.Store.ApplyConsolidation(updates, deleteIDs); err != nil {
		return 0, err
	}
	log.Info("consolidated facts", "story", storyID, "absorbed", absorbed)
	return absorbed, nil
}
