package loot

import (
	"fmt"
	"strings"
)

// Kind identifies which page family a loot table comes from.
type Kind string

const (
	KindNPC    Kind = "npc"
	KindObject Kind = "object"
	KindItem   Kind = "item"
)

// Label returns the capitalized form used in SQL comment headers.
func (k Kind) Label() string {
	switch k {
	case KindNPC:
		return "NPC"
	case KindObject:
		return "Object"
	case KindItem:
		return "Item"
	}
	return string(k)
}

// Quality is the numeric item quality tier exposed by the site (0-6).
// QualityUnknown marks entries whose tier was absent from the listing
// and still has to be resolved through enrichment.
type Quality int

const (
	QualityUnknown   Quality = -1
	QualityPoor      Quality = 0
	QualityCommon    Quality = 1
	QualityUncommon  Quality = 2
	QualityRare      Quality = 3
	QualityEpic      Quality = 4
	QualityLegendary Quality = 5
	QualityArtifact  Quality = 6
)

// qualityLabels is the source of truth for tier names. Tier 2 is labelled
// "green" to match the vernacular used in generated SQL comments.
var qualityLabels = map[Quality]string{
	QualityPoor:      "poor",
	QualityCommon:    "common",
	QualityUncommon:  "green",
	QualityRare:      "rare",
	QualityEpic:      "epic",
	QualityLegendary: "legendary",
	QualityArtifact:  "artifact",
}

// labelMap is a reverse map generated from qualityLabels for parsing
// caller-supplied quality names, plus a few accepted aliases.
var labelMap map[string]Quality

func init() {
	labelMap = make(map[string]Quality)
	for q, label := range qualityLabels {
		labelMap[label] = q
	}
	labelMap["uncommon"] = QualityUncommon
	labelMap["unknown"] = QualityUnknown
}

func (q Quality) String() string {
	if label, ok := qualityLabels[q]; ok {
		return label
	}
	if q == QualityUnknown {
		return "unknown"
	}
	return fmt.Sprintf("q%d", int(q))
}

// ParseQuality resolves a quality name case-insensitively.
func ParseQuality(s string) (Quality, bool) {
	q, ok := labelMap[strings.ToLower(strings.TrimSpace(s))]
	return q, ok
}

// Entry is one candidate drop row for a target's loot table.
//
// The parser fills the raw fields straight from the embedded dataset and
// leaves the derived flags zeroed; the classifier resolves those in place.
// Chance carries its sign: quest items go negative after classification.
type Entry struct {
	ItemID    int
	Name      string
	Quality   Quality
	Chance    float64
	HasChance bool
	MinCount  int
	MaxCount  int

	// Raw listing metadata, with presence markers so that absence can be
	// told apart from zero values.
	ClassID  int
	HasClass bool
	Flags    string
	HasFlags bool

	// Derived by the classifier.
	QuestItem       bool
	Professions     []string
	Legendary       bool
	NeedsEnrichment bool
}
