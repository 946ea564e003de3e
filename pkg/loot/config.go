package loot

// Config carries every tunable the extraction pipeline consumes. It is
// built once at run start and passed by value into the parser, classifier
// and renderer, so nothing reads ambient global state.
type Config struct {
	// MaxItemID discards entries above the targeted content era at parse
	// time. Defaults to the last Legion item ID.
	MaxItemID int

	// ExcludedItemIDs is the built-in set of known-problematic IDs that are
	// dropped at parse time regardless of caller exclusions.
	ExcludedItemIDs map[int]bool

	// Professions lists the supported professions in a fixed order, so that
	// multi-profession matches always come out the same way.
	Professions []string

	// SkillIDs maps a profession to the skill ID used in condition rows.
	SkillIDs map[string]int

	// RecipeKeywords are the name tokens that mark an item as a recipe.
	RecipeKeywords []string

	// QuestClassID is the item class code meaning "quest item".
	QuestClassID int
}

func DefaultConfig() Config {
	return Config{
		MaxItemID: 157831,
		ExcludedItemIDs: map[int]bool{
			124124: true, 138482: true, 138786: true, 141689: true,
			141690: true, 147579: true, 138781: true, 138782: true,
			140220: true, 140221: true, 140222: true, 140224: true,
			140225: true, 140226: true, 140227: true, 144345: true,
			147869: true, 138019: true, -1275: true,
		},
		Professions: []string{
			"alchemy", "enchanting", "jewelcrafting", "inscription",
			"leatherworking", "blacksmithing", "engineering", "tailoring",
			"herbalism", "cooking",
		},
		SkillIDs: map[string]int{
			"alchemy":        171,
			"enchanting":     333,
			"jewelcrafting":  755,
			"inscription":    773,
			"leatherworking": 165,
			"blacksmithing":  164,
			"engineering":    202,
			"tailoring":      197,
			"herbalism":      182,
			"cooking":        185,
		},
		RecipeKeywords: []string{
			"recipe", "pattern", "plans", "technique", "design", "formula", "schematic",
		},
		QuestClassID: 12,
	}
}
