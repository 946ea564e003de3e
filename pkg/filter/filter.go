package filter

import (
	"strconv"
	"strings"

	"github.com/krelborne/wowloot/internal/utils"
	"github.com/krelborne/wowloot/pkg/loot"
)

// Rules is a caller-supplied exclusion spec, immutable for the duration
// of a run. An entry is removed when ANY of the three axes matches.
type Rules struct {
	IDs         map[int]bool
	Qualities   map[loot.Quality]bool
	Professions map[string]bool
}

// Empty reports whether the rules exclude nothing.
func (r Rules) Empty() bool {
	return len(r.IDs) == 0 && len(r.Qualities) == 0 && len(r.Professions) == 0
}

// ParseRules builds exclusion rules from comma-separated flag values.
// Unknown or malformed tokens are ignored with a warning; they are never
// fatal to the run.
func ParseRules(ids, qualities, professions string, cfg loot.Config) Rules {
	r := Rules{
		IDs:         make(map[int]bool),
		Qualities:   make(map[loot.Quality]bool),
		Professions: make(map[string]bool),
	}

	for _, tok := range splitTokens(ids) {
		id, err := strconv.Atoi(tok)
		if err != nil {
			utils.Log.Warnf("Ignoring invalid excluded item ID %q", tok)
			continue
		}
		r.IDs[id] = true
	}

	for _, tok := range splitTokens(qualities) {
		q, ok := loot.ParseQuality(tok)
		if !ok {
			utils.Log.Warnf("Ignoring unknown excluded quality %q", tok)
			continue
		}
		r.Qualities[q] = true
	}

	supported := make(map[string]bool, len(cfg.Professions))
	for _, p := range cfg.Professions {
		supported[p] = true
	}
	for _, tok := range splitTokens(professions) {
		p := strings.ToLower(tok)
		if !supported[p] {
			utils.Log.Warnf("Ignoring unknown excluded profession %q", tok)
			continue
		}
		r.Professions[p] = true
	}

	return r
}

// Apply returns the entries surviving the rules, preserving order. It
// runs strictly after classification, so quality and profession checks
// see fully resolved values. Applying the same rules twice is a no-op.
func Apply(entries []loot.Entry, rules Rules) []loot.Entry {
	if rules.Empty() {
		return entries
	}
	out := make([]loot.Entry, 0, len(entries))
	for _, e := range entries {
		if reason := excludeReason(e, rules); reason != "" {
			utils.Log.Debugf("Excluding item %d (%s): %s", e.ItemID, e.Name, reason)
			continue
		}
		out = append(out, e)
	}
	return out
}

func excludeReason(e loot.Entry, rules Rules) string {
	if rules.IDs[e.ItemID] {
		return "excluded item ID"
	}
	if rules.Qualities[e.Quality] {
		return "excluded quality " + e.Quality.String()
	}
	for _, p := range e.Professions {
		if rules.Professions[p] {
			return "excluded profession " + p
		}
	}
	return ""
}

func splitTokens(csv string) []string {
	var toks []string
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		toks = append(toks, part)
	}
	return toks
}
