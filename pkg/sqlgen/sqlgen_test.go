package sqlgen

import (
	"strings"
	"testing"

	"github.com/krelborne/wowloot/pkg/loot"
)

func TestRenderFullBlock(t *testing.T) {
	cfg := loot.DefaultConfig()
	entries := []loot.Entry{
		{ItemID: 18255, Name: "Runn Tum Tuber", Quality: loot.QualityUncommon, Chance: 24.5, HasChance: true, MinCount: 1, MaxCount: 3},
		{ItemID: 18160, Name: "Recipe: Runn Tum Tuber Surprise", Quality: loot.QualityUncommon, Chance: 2.336, HasChance: true, MinCount: 1, MaxCount: 1, Professions: []string{"cooking"}},
		{ItemID: 18258, Name: "Gordok Shackle Key", Quality: loot.QualityCommon, Chance: -92, HasChance: true, MinCount: 1, MaxCount: 1, QuestItem: true},
	}

	want := strings.Join([]string{
		"-- NPC 1234 - Gordok Tribute loot",
		"-- 24.50% green Runn Tum Tuber",
		"-- 2.34% green cooking (recipe) Recipe: Runn Tum Tuber Surprise",
		"-- -92.00% quest common Gordok Shackle Key",
		"",
		"SET @ENTRY := 1234;",
		"REPLACE INTO creature_loot_template (`entry`,`item`,`ChanceOrQuestChance`,`lootmode`,`groupid`,`mincountOrRef`,`maxcount`,`shared`) VALUES",
		"(@ENTRY,18255,24.50,23,0,1,3,0),",
		"(@ENTRY,18160,2.34,23,0,1,1,0),",
		"(@ENTRY,18258,-92.00,23,0,1,1,0);",
		"",
		"-- loot conditions",
		"DELETE FROM conditions WHERE `SourceTypeOrReferenceId`=1 AND `SourceGroup`=@ENTRY AND `SourceEntry`=18160;",
		"INSERT INTO conditions (`SourceTypeOrReferenceId`, `SourceGroup`, `SourceEntry`, `SourceId`, `ElseGroup`, `ConditionTypeOrReference`, `ConditionTarget`, `ConditionValue1`, `ConditionValue2`, `ConditionValue3`, `NegativeCondition`, `ErrorTextId`, `ScriptName`, `Comment`) VALUES (1, @ENTRY, 18160, 0, 1, 7, 0, 185, 1, 0, 0, 0, '', 'Item Drop - Has Cooking');",
		"INSERT INTO conditions (`SourceTypeOrReferenceId`, `SourceGroup`, `SourceEntry`, `SourceId`, `ElseGroup`, `ConditionTypeOrReference`, `ConditionTarget`, `ConditionValue1`, `ConditionValue2`, `ConditionValue3`, `NegativeCondition`, `ErrorTextId`, `ScriptName`, `Comment`) VALUES (1, @ENTRY, 18160, 0, 1, 2, 0, 18160, 1, 1, 1, 0, '', 'Item Drop - No Item');",
	}, "\n") + "\n"

	got := Render(loot.KindNPC, 1234, "Gordok Tribute", entries, cfg)
	if got != want {
		t.Fatalf("unexpected SQL block.\nwant:\n%s\ngot:\n%s", want, got)
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	cfg := loot.DefaultConfig()
	entries := []loot.Entry{
		{ItemID: 1, Name: "A", Quality: loot.QualityCommon, Chance: 1.5, HasChance: true, MinCount: 1, MaxCount: 1},
		{ItemID: 2, Name: "B", Quality: loot.QualityRare, Chance: 0.5, HasChance: true, MinCount: 1, MaxCount: 1, Professions: []string{"alchemy"}},
	}

	first := Render(loot.KindObject, 7, "Chest", entries, cfg)
	second := Render(loot.KindObject, 7, "Chest", entries, cfg)
	if first != second {
		t.Fatalf("output differs between runs.\nfirst:\n%s\nsecond:\n%s", first, second)
	}
}

func TestRenderNoLoot(t *testing.T) {
	cfg := loot.DefaultConfig()

	want := "-- Object 42 - Battered Chest loot\n-- No loot found.\n"
	if got := Render(loot.KindObject, 42, "Battered Chest", nil, cfg); got != want {
		t.Fatalf("empty target.\nwant: %q\ngot:  %q", want, got)
	}

	// Entries that all lack a drop chance end the same way.
	chanceless := []loot.Entry{{ItemID: 5, Name: "Ghost Drop"}}
	if got := Render(loot.KindObject, 42, "Battered Chest", chanceless, cfg); got != want {
		t.Fatalf("all-skipped target.\nwant: %q\ngot:  %q", want, got)
	}
}

func TestRenderSkipsEntriesWithoutChance(t *testing.T) {
	cfg := loot.DefaultConfig()
	entries := []loot.Entry{
		{ItemID: 10, Name: "Listed", Quality: loot.QualityCommon, Chance: 80, HasChance: true, MinCount: 1, MaxCount: 1},
		{ItemID: 999, Name: "Unlisted", Quality: loot.QualityCommon},
	}

	got := Render(loot.KindNPC, 1, "Target", entries, cfg)
	if !strings.Contains(got, "(@ENTRY,10,80.00,") {
		t.Fatalf("listed entry missing:\n%s", got)
	}
	if strings.Contains(got, "999") || strings.Contains(got, "Unlisted") {
		t.Fatalf("chance-less entry leaked into output:\n%s", got)
	}
}

func TestDecideChance(t *testing.T) {
	cases := []struct {
		name  string
		entry loot.Entry
		want  string
	}{
		{"rounds to two decimals", loot.Entry{Chance: 9.337, HasChance: true}, "9.34"},
		{"zero floors to 0.10", loot.Entry{Chance: 0, HasChance: true}, "0.10"},
		{"near zero floors to 0.10", loot.Entry{Chance: 0.004, HasChance: true}, "0.10"},
		{"quest goes negative", loot.Entry{Chance: 9.337, HasChance: true, QuestItem: true}, "-9.34"},
		{"quest zero floors then flips", loot.Entry{Chance: 0, HasChance: true, QuestItem: true}, "-0.10"},
		{"negative quest stays negative", loot.Entry{Chance: -4.2, HasChance: true, QuestItem: true}, "-4.20"},
	}
	for _, c := range cases {
		if got := FormatChance(decideChance(c.entry)); got != c.want {
			t.Errorf("%s: got %s, want %s", c.name, got, c.want)
		}
	}
}

func TestRenderNameFallsBackToID(t *testing.T) {
	cfg := loot.DefaultConfig()

	got := Render(loot.KindNPC, 99, "", nil, cfg)
	if !strings.HasPrefix(got, "-- NPC 99 - 99 loot\n") {
		t.Fatalf("missing ID fallback header:\n%s", got)
	}
}

func TestRenderPerKindTables(t *testing.T) {
	cfg := loot.DefaultConfig()
	entries := []loot.Entry{
		{ItemID: 3, Name: "Recipe: Something", Quality: loot.QualityUncommon, Chance: 5, HasChance: true, MinCount: 1, MaxCount: 1, Professions: []string{"alchemy"}},
	}

	cases := []struct {
		kind   loot.Kind
		table  string
		source string
	}{
		{loot.KindNPC, "creature_loot_template", "`SourceTypeOrReferenceId`=1 AND"},
		{loot.KindObject, "gameobject_loot_template", "`SourceTypeOrReferenceId`=4 AND"},
		{loot.KindItem, "item_loot_template", "`SourceTypeOrReferenceId`=5 AND"},
	}
	for _, c := range cases {
		got := Render(c.kind, 1, "X", entries, cfg)
		if !strings.Contains(got, "REPLACE INTO "+c.table+" (") {
			t.Errorf("%s: missing table %s:\n%s", c.kind, c.table, got)
		}
		if !strings.Contains(got, c.source) {
			t.Errorf("%s: missing condition source:\n%s", c.kind, got)
		}
	}
}

func TestRenderConditionsUseFirstKnownProfession(t *testing.T) {
	cfg := loot.DefaultConfig()
	entries := []loot.Entry{
		{ItemID: 3, Name: "Recipe: Dual Use", Quality: loot.QualityUncommon, Chance: 5, HasChance: true, MinCount: 1, MaxCount: 1, Professions: []string{"herbalism", "alchemy"}},
	}

	got := Render(loot.KindNPC, 1, "X", entries, cfg)
	if !strings.Contains(got, "'Item Drop - Has Herbalism'") {
		t.Fatalf("expected the first profession to gate the condition:\n%s", got)
	}
	if strings.Contains(got, "Has Alchemy") {
		t.Fatalf("second profession should not produce rows:\n%s", got)
	}
}

func TestRenderNoConditionsForUnknownProfession(t *testing.T) {
	cfg := loot.DefaultConfig()
	entries := []loot.Entry{
		{ItemID: 3, Name: "Recipe: Odd", Quality: loot.QualityUncommon, Chance: 5, HasChance: true, MinCount: 1, MaxCount: 1, Professions: []string{"basketweaving"}},
	}

	got := Render(loot.KindNPC, 1, "X", entries, cfg)
	if strings.Contains(got, "loot conditions") {
		t.Fatalf("profession without a skill ID must not emit conditions:\n%s", got)
	}
}
