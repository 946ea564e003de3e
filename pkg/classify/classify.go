package classify

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/krelborne/wowloot/internal/utils"
	"github.com/krelborne/wowloot/pkg/itempage"
	"github.com/krelborne/wowloot/pkg/loot"
)

// FetchItem resolves an individual item page into parsed metadata. The
// extractor wires this to the wowhead client so enrichment fetches share
// the page cache and throttling with primary fetches.
type FetchItem func(ctx context.Context, itemID int) (*itempage.Info, error)

// Classify derives the quest, profession and legendary flags for every
// entry, fetching the item's own page when the listing data was not
// enough to decide. A failed enrichment fetch never aborts the run: the
// entry keeps its listing data, unresolved flags stay false, and the
// condition is reported in the returned warnings.
func Classify(ctx context.Context, entries []loot.Entry, fetchItem FetchItem, cfg loot.Config) ([]loot.Entry, []string) {
	var warnings []string

	out := make([]loot.Entry, 0, len(entries))
	for _, e := range entries {
		recipe, profs := nameSignals(e.Name, cfg)
		questText := false

		if fetchItem != nil && (e.NeedsEnrichment || (recipe && len(profs) == 0)) {
			info, err := fetchItem(ctx, e.ItemID)
			if err != nil {
				w := fmt.Sprintf("item %d: enrichment fetch failed, keeping listing data: %v", e.ItemID, err)
				utils.Log.Warn(w)
				warnings = append(warnings, w)
			} else {
				mergeInfo(&e, info)

				// Re-read the name signals: enrichment may have filled in
				// a name the listing lacked.
				recipe, profs = nameSignals(e.Name, cfg)
				if recipe && len(profs) == 0 {
					profs = professionsInTexts(info.Descriptions, cfg)
				}
				if !recipe {
					if dRecipe, dProfs := recipeSignals(info.Descriptions, cfg); dRecipe && len(dProfs) > 0 {
						recipe, profs = true, dProfs
					}
				}
				questText = mentionsQuestItem(info.Descriptions)
				e.NeedsEnrichment = false
			}
		}

		e.QuestItem = isQuestItem(e, questText, cfg)
		if recipe {
			e.Professions = profs
		}
		e.Legendary = e.Quality == loot.QualityLegendary
		if e.QuestItem {
			e.Chance = -math.Abs(e.Chance)
		}
		out = append(out, e)
	}
	return out, warnings
}

// mergeInfo fills listing gaps from an item page, never overwriting a
// value the listing already provided.
func mergeInfo(e *loot.Entry, info *itempage.Info) {
	if e.Name == "" && info.Name != "" {
		e.Name = info.Name
	}
	if e.Quality == loot.QualityUnknown && info.Quality != loot.QualityUnknown {
		e.Quality = info.Quality
	}
	if !e.HasClass && info.HasClass {
		e.ClassID = info.ClassID
		e.HasClass = true
	}
	if !e.HasFlags && info.HasFlags {
		e.Flags = info.Flags
		e.HasFlags = true
	}
}

// nameSignals reports whether the item name marks a recipe, and which
// professions the name itself mentions. Professions are only meaningful
// on recipes, so a non-recipe name yields none.
func nameSignals(name string, cfg loot.Config) (bool, []string) {
	lname := strings.ToLower(name)
	for _, kw := range cfg.RecipeKeywords {
		if strings.Contains(lname, kw) {
			return true, professionsIn(lname, cfg)
		}
	}
	return false, nil
}

// recipeSignals scans page texts for recipe evidence. A text counts only
// when it uses a recipe keyword and names a profession, so a flavor line
// that merely mentions alchemy does not turn an item into a recipe.
func recipeSignals(texts []string, cfg loot.Config) (bool, []string) {
	recipe := false
	for _, t := range texts {
		lt := strings.ToLower(t)
		for _, kw := range cfg.RecipeKeywords {
			if strings.Contains(lt, kw) {
				recipe = true
				break
			}
		}
	}
	if !recipe {
		return false, nil
	}
	return true, professionsInTexts(texts, cfg)
}

// professionsInTexts collects every supported profession named by any of
// the texts, deduplicated, in the fixed configuration order.
func professionsInTexts(texts []string, cfg loot.Config) []string {
	seen := make(map[string]bool)
	for _, t := range texts {
		for _, p := range professionsIn(strings.ToLower(t), cfg) {
			seen[p] = true
		}
	}
	if len(seen) == 0 {
		return nil
	}
	var out []string
	for _, p := range cfg.Professions {
		if seen[p] {
			out = append(out, p)
		}
	}
	return out
}

// professionsIn returns the professions mentioned in lowercase text, in
// the fixed configuration order. Several may match; the filter decides
// what to do with ambiguous multi-profession items.
func professionsIn(ltext string, cfg loot.Config) []string {
	var out []string
	for _, p := range cfg.Professions {
		if strings.Contains(ltext, p) {
			out = append(out, p)
		}
	}
	return out
}

// isQuestItem applies the quest signals. Any single one is sufficient:
// the quest item class code, the token "quest" in the name or in the raw
// flag metadata, or the item page describing it as a quest item.
func isQuestItem(e loot.Entry, questText bool, cfg loot.Config) bool {
	if e.HasClass && e.ClassID == cfg.QuestClassID {
		return true
	}
	if strings.Contains(strings.ToLower(e.Name), "quest") {
		return true
	}
	if e.HasFlags && flagsMarkQuest(e.Flags) {
		return true
	}
	return questText
}

// flagsMarkQuest reads the raw flag metadata, which the site ships either
// as a textual flag list or as a numeric bitmask where 0x800 means quest
// item.
func flagsMarkQuest(flags string) bool {
	if strings.Contains(strings.ToLower(flags), "quest") {
		return true
	}
	if n, err := strconv.ParseInt(strings.TrimSpace(flags), 0, 64); err == nil {
		return n&0x800 != 0
	}
	return false
}

func mentionsQuestItem(texts []string) bool {
	for _, t := range texts {
		if strings.Contains(strings.ToLower(t), "quest item") {
			return true
		}
	}
	return false
}
