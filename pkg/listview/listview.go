package listview

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/krelborne/wowloot/internal/utils"
	"github.com/krelborne/wowloot/pkg/loot"
	"github.com/tidwall/gjson"
)

// Reason tags why a page's embedded loot dataset was unusable.
type Reason string

const (
	MissingDataBlock Reason = "missing data block"
	MalformedEntry   Reason = "malformed entry"
)

// ParseError reports a primary page that yielded no loot table.
type ParseError struct {
	Reason Reason
	Detail string
}

func (e *ParseError) Error() string {
	if e.Detail == "" {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

var (
	listviewRe    = regexp.MustCompile(`new Listview\s*\(`)
	dropsTabRe    = regexp.MustCompile(`id\s*:\s*['"]drops['"]`)
	containsTabRe = regexp.MustCompile(`(?i)id\s*:\s*['"][^'"]*contains[^'"]*['"]`)
	dataRe        = regexp.MustCompile(`data\s*:\s*(\[|[A-Za-z0-9_$.]+)`)
	htmlTagRe     = regexp.MustCompile(`<[^>]+>`)
	spaceRe       = regexp.MustCompile(`\s+`)
)

// rawBlock is one Listview occurrence: its full option object text plus
// the resolved body of its data array (without the outer brackets).
type rawBlock struct {
	body string
	data string
}

// ParseEntries locates the loot dataset embedded in a page and joins it
// into entries, in order of first appearance. NPC pages carry the table
// in the "drops" tab; object and item pages in a "contains" tab, with a
// fallback to the largest inline dataset when the tab is unlabelled.
func ParseEntries(page string, kind loot.Kind, cfg loot.Config) ([]loot.Entry, error) {
	type candidate struct {
		entries   []loot.Entry
		malformed int
		preferred bool
	}

	var candidates []candidate
	sawObjects := false

	for _, b := range findBlocks(page) {
		preferred := false
		switch kind {
		case loot.KindNPC:
			if !dropsTabRe.MatchString(b.body) {
				continue
			}
			preferred = true
		default:
			preferred = containsTabRe.MatchString(b.body)
		}

		entries, malformed := parseArray(b.data)
		if len(entries)+malformed > 0 {
			sawObjects = true
		}
		if len(entries) == 0 {
			continue
		}
		candidates = append(candidates, candidate{entries, malformed, preferred})
	}

	// Prefer the labelled tab; several candidate blocks of the same rank are
	// disambiguated by size, the loot table being the largest dataset.
	best := -1
	for i, c := range candidates {
		if best == -1 {
			best = i
			continue
		}
		b := candidates[best]
		if (c.preferred && !b.preferred) || (c.preferred == b.preferred && len(c.entries) > len(b.entries)) {
			best = i
		}
	}
	if best == -1 {
		if sawObjects {
			return nil, &ParseError{Reason: MalformedEntry, Detail: "data block holds no usable entries"}
		}
		return nil, &ParseError{Reason: MissingDataBlock}
	}

	chosen := candidates[best]
	if chosen.malformed > 0 {
		utils.Log.Warnf("Skipped %d malformed entries in loot data block", chosen.malformed)
	}

	seen := make(map[int]bool)
	out := make([]loot.Entry, 0, len(chosen.entries))
	for _, e := range chosen.entries {
		if e.ItemID > cfg.MaxItemID {
			utils.Log.Debugf("Skipping item %d: above max item ID %d", e.ItemID, cfg.MaxItemID)
			continue
		}
		if cfg.ExcludedItemIDs[e.ItemID] {
			utils.Log.Debugf("Skipping item %d: on the built-in exclusion list", e.ItemID)
			continue
		}
		if seen[e.ItemID] {
			utils.Log.Debugf("Duplicate item %d in loot data, keeping the first occurrence", e.ItemID)
			continue
		}
		seen[e.ItemID] = true
		e.NeedsEnrichment = e.Quality == loot.QualityUnknown || !e.HasClass || !e.HasFlags
		out = append(out, e)
	}
	return out, nil
}

// findBlocks scans for new Listview({...}) occurrences and resolves each
// block's data array, whether inline or assigned to a variable elsewhere
// on the page.
func findBlocks(page string) []rawBlock {
	var blocks []rawBlock
	for _, m := range listviewRe.FindAllStringIndex(page, -1) {
		braceOff := strings.Index(page[m[1]:], "{")
		if braceOff == -1 {
			continue
		}
		start := m[1] + braceOff
		body := extractBracketed(page[start:], '{', '}')
		if body == "" {
			continue
		}

		dm := dataRe.FindStringSubmatchIndex(body)
		if dm == nil {
			continue
		}
		token := body[dm[2]:dm[3]]

		var data string
		if token == "[" {
			arr := extractBracketed(body[dm[2]:], '[', ']')
			if arr == "" {
				continue
			}
			data = arr[1 : len(arr)-1]
		} else {
			data = findArrayAssignment(page, token)
			if data == "" {
				continue
			}
		}
		blocks = append(blocks, rawBlock{body: body, data: data})
	}
	return blocks
}

// findArrayAssignment resolves `data: someVar` references by locating the
// array literal assigned to that variable elsewhere on the page.
func findArrayAssignment(page, name string) string {
	re := regexp.MustCompile(`(?:var\s+|window\.)?` + regexp.QuoteMeta(name) + `\s*=\s*\[`)
	m := re.FindStringIndex(page)
	if m == nil {
		return ""
	}
	arr := extractBracketed(page[m[1]-1:], '[', ']')
	if arr == "" {
		return ""
	}
	return arr[1 : len(arr)-1]
}

// extractBracketed returns the balanced bracket run starting at s[0].
// It tolerates nested brackets and quoted strings with escapes, single
// or double quoted, so JS literals do not derail the scan.
func extractBracketed(s string, open, close byte) string {
	if len(s) == 0 || s[0] != open {
		return ""
	}

	depth := 0
	var inString byte
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		if inString != 0 {
			if c == '\\' {
				escaped = true
			} else if c == inString {
				inString = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			inString = c
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}

// extractObjects splits an array body into its top-level {...} members.
func extractObjects(arrayBody string) []string {
	var objs []string
	for i := 0; i < len(arrayBody); i++ {
		if arrayBody[i] != '{' {
			continue
		}
		obj := extractBracketed(arrayBody[i:], '{', '}')
		if obj == "" {
			break
		}
		objs = append(objs, obj)
		i += len(obj) - 1
	}
	return objs
}

// parseArray parses every object in an array body, counting the ones that
// are too malformed to keep.
func parseArray(arrayBody string) ([]loot.Entry, int) {
	malformed := 0
	var entries []loot.Entry
	for _, o := range extractObjects(arrayBody) {
		e, ok := parseItemObject(o)
		if !ok {
			malformed++
			continue
		}
		entries = append(entries, e)
	}
	return entries, malformed
}

// parseItemObject pulls one entry out of a dataset object. Only the item
// ID is mandatory; anything else missing is recorded as absent so the
// classifier can decide whether enrichment is needed.
func parseItemObject(o string) (loot.Entry, bool) {
	id := gjson.Get(o, "id")
	if !id.Exists() || id.Int() <= 0 {
		return loot.Entry{}, false
	}

	e := loot.Entry{
		ItemID:   int(id.Int()),
		Quality:  loot.QualityUnknown,
		MinCount: 1,
		MaxCount: 1,
	}

	name := gjson.Get(o, "name")
	if !name.Exists() {
		name = gjson.Get(o, "displayName")
	}
	e.Name = cleanName(name.String())

	if q := gjson.Get(o, "quality"); q.Exists() {
		e.Quality = loot.Quality(q.Int())
	}
	if c := gjson.Get(o, "classs"); c.Exists() {
		e.ClassID = int(c.Int())
		e.HasClass = true
	}
	if f := gjson.Get(o, "flags"); f.Exists() {
		e.Flags = f.String()
		e.HasFlags = true
	}
	if chance, ok := extractChance(o); ok {
		e.Chance = chance
		e.HasChance = true
	}
	if st := gjson.Get(o, "stack"); st.IsArray() {
		arr := st.Array()
		switch {
		case len(arr) >= 2:
			e.MinCount, e.MaxCount = int(arr[0].Int()), int(arr[1].Int())
		case len(arr) == 1:
			e.MinCount, e.MaxCount = int(arr[0].Int()), int(arr[0].Int())
		}
	}
	return e, true
}

// directChanceKeys are the percentage field names, in priority order.
// Pages are not consistent about casing, so lookups lowercase the keys.
var directChanceKeys = []string{"dropchance", "drop_chance", "chance", "pct", "percent"}

// extractChance resolves the drop chance of a dataset object. Direct
// percentage fields win; otherwise the chance is computed from sample
// counts, preferring the top-level pair, then mode "0" (all difficulties),
// then the mode with the largest sample.
func extractChance(o string) (float64, bool) {
	fields := make(map[string]gjson.Result)
	gjson.Parse(o).ForEach(func(k, v gjson.Result) bool {
		fields[strings.ToLower(k.String())] = v
		return true
	})
	for _, key := range directChanceKeys {
		if v, ok := fields[key]; ok && v.Type == gjson.Number {
			return math.Round(v.Float()*100) / 100, true
		}
	}

	count := gjson.Get(o, "count")
	outof := gjson.Get(o, "outof")
	if count.Exists() && outof.Exists() && outof.Int() > 0 && count.Int() >= 0 {
		return float64(count.Int()) / float64(outof.Int()) * 100, true
	}

	modes := gjson.Get(o, "modes")
	if !modes.IsObject() {
		return 0, false
	}
	if c, ok := sampleChance(modes.Get("0")); ok {
		return c, true
	}
	var bestOutof int64
	var best gjson.Result
	modes.ForEach(func(k, v gjson.Result) bool {
		if !isDigits(k.String()) || !v.IsObject() {
			return true
		}
		if oo := v.Get("outof").Int(); oo > bestOutof && v.Get("count").Int() >= 0 {
			bestOutof = oo
			best = v
		}
		return true
	})
	if bestOutof > 0 {
		return sampleChance(best)
	}
	return 0, false
}

func sampleChance(mode gjson.Result) (float64, bool) {
	if !mode.IsObject() {
		return 0, false
	}
	count, outof := mode.Get("count").Int(), mode.Get("outof").Int()
	if outof > 0 && count >= 0 {
		return float64(count) / float64(outof) * 100, true
	}
	return 0, false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// cleanName strips markup remnants from a scraped display name.
func cleanName(s string) string {
	s = htmlTagRe.ReplaceAllString(s, "")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
