package sqlgen

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/krelborne/wowloot/internal/utils"
	"github.com/krelborne/wowloot/pkg/loot"
)

// Loot row constants shared by every emitted row. Lootmode 23 covers the
// normal difficulty mask used by the target database.
const (
	lootMode = 23
	groupID  = 0
	shared   = 0
)

// lootTables maps a page kind to its loot template table.
var lootTables = map[loot.Kind]string{
	loot.KindNPC:    "creature_loot_template",
	loot.KindObject: "gameobject_loot_template",
	loot.KindItem:   "item_loot_template",
}

// conditionSources maps a page kind to the SourceTypeOrReferenceId used
// by the conditions table for that loot template.
var conditionSources = map[loot.Kind]int{
	loot.KindNPC:    1,
	loot.KindObject: 4,
	loot.KindItem:   5,
}

// Render turns a classified, filtered entry sequence into the SQL block
// for one target: a comment header describing each row, one REPLACE
// covering every entry that has a drop chance, and the per-recipe
// condition statements. Output order follows entry order, so the result
// is byte-identical across repeated invocations on the same input.
func Render(kind loot.Kind, targetID int, targetName string, entries []loot.Entry, cfg loot.Config) string {
	if targetName == "" {
		targetName = strconv.Itoa(targetID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "-- %s %d - %s loot\n", kind.Label(), targetID, targetName)

	var vals []string
	var skipped []int
	for _, e := range entries {
		if !e.HasChance {
			skipped = append(skipped, e.ItemID)
			continue
		}
		chance := decideChance(e)
		b.WriteString(commentLine(e, chance))
		vals = append(vals, fmt.Sprintf("(@ENTRY,%d,%s,%d,%d,%d,%d,%d)",
			e.ItemID, FormatChance(chance), lootMode, groupID, e.MinCount, e.MaxCount, shared))
	}
	if len(skipped) > 0 {
		utils.Log.Warnf("Skipping %d items with no listed drop chance: %v", len(skipped), skipped)
	}

	if len(vals) == 0 {
		b.WriteString("-- No loot found.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "\nSET @ENTRY := %d;\n", targetID)
	fmt.Fprintf(&b, "REPLACE INTO %s (`entry`,`item`,`ChanceOrQuestChance`,`lootmode`,`groupid`,`mincountOrRef`,`maxcount`,`shared`) VALUES\n", lootTables[kind])
	b.WriteString(strings.Join(vals, ",\n"))
	b.WriteString(";\n")

	b.WriteString(conditionBlock(kind, entries, cfg))
	return b.String()
}

// commentLine renders the human-readable summary of one row: chance,
// quest marker, quality label, profession recipe marker and name.
func commentLine(e loot.Entry, chance float64) string {
	parts := []string{FormatChance(chance) + "%"}
	if e.QuestItem {
		parts = append(parts, "quest")
	}
	parts = append(parts, e.Quality.String())
	if len(e.Professions) > 0 {
		parts = append(parts, strings.Join(e.Professions, "/")+" (recipe)")
	}
	if e.Name != "" {
		parts = append(parts, e.Name)
	}
	return "-- " + strings.Join(parts, " ") + "\n"
}

// conditionBlock emits, for every entry carrying a profession with a
// known skill ID, one DELETE clearing stale condition rows and two
// INSERTs: the profession-skill gate and the not-already-owned fallback.
// Together they make a recipe drop for characters that can learn it and
// do not own it yet.
func conditionBlock(kind loot.Kind, entries []loot.Entry, cfg loot.Config) string {
	source := conditionSources[kind]

	var b strings.Builder
	for _, e := range entries {
		prof, skill := firstKnownSkill(e.Professions, cfg)
		if skill == 0 {
			continue
		}
		if b.Len() == 0 {
			b.WriteString("\n-- loot conditions\n")
		}
		fmt.Fprintf(&b, "DELETE FROM conditions WHERE `SourceTypeOrReferenceId`=%d AND `SourceGroup`=@ENTRY AND `SourceEntry`=%d;\n", source, e.ItemID)
		fmt.Fprintf(&b, "INSERT INTO conditions (`SourceTypeOrReferenceId`, `SourceGroup`, `SourceEntry`, `SourceId`, `ElseGroup`, `ConditionTypeOrReference`, `ConditionTarget`, `ConditionValue1`, `ConditionValue2`, `ConditionValue3`, `NegativeCondition`, `ErrorTextId`, `ScriptName`, `Comment`) VALUES (%d, @ENTRY, %d, 0, 1, 7, 0, %d, 1, 0, 0, 0, '', 'Item Drop - Has %s');\n",
			source, e.ItemID, skill, capitalize(prof))
		fmt.Fprintf(&b, "INSERT INTO conditions (`SourceTypeOrReferenceId`, `SourceGroup`, `SourceEntry`, `SourceId`, `ElseGroup`, `ConditionTypeOrReference`, `ConditionTarget`, `ConditionValue1`, `ConditionValue2`, `ConditionValue3`, `NegativeCondition`, `ErrorTextId`, `ScriptName`, `Comment`) VALUES (%d, @ENTRY, %d, 0, 1, 2, 0, %d, 1, 1, 1, 0, '', 'Item Drop - No Item');\n",
			source, e.ItemID, e.ItemID)
	}
	return b.String()
}

// firstKnownSkill picks the profession used for the condition rows when
// an item matched several: the first with a known skill ID, in the order
// the professions were recorded.
func firstKnownSkill(professions []string, cfg loot.Config) (string, int) {
	for _, p := range professions {
		if skill, ok := cfg.SkillIDs[p]; ok {
			return p, skill
		}
	}
	return "", 0
}

// decideChance resolves the chance column value for an entry. An exact
// zero is bumped to 0.1 so the row stays live in game, and quest items
// go negative per the ChanceOrQuestChance convention.
func decideChance(e loot.Entry) float64 {
	f := math.Round(e.Chance*100) / 100
	if f == 0 {
		f = 0.1
	}
	if e.QuestItem {
		f = -math.Abs(f)
	}
	return f
}

// FormatChance renders a chance with exactly two decimals, keeping the
// sign.
func FormatChance(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
