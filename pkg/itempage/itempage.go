package itempage

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/krelborne/wowloot/pkg/loot"
	"github.com/tidwall/gjson"
)

// Info is the metadata recoverable from an individual item page. Fields
// stay zero when the page carried no signal; the classifier merges what
// it gets and derives the flags itself.
type Info struct {
	ItemID   int
	Name     string
	Quality  loot.Quality
	ClassID  int
	HasClass bool
	Flags    string
	HasFlags bool

	// Descriptions collects the page texts (ld+json and meta descriptions)
	// scanned for profession, recipe and quest mentions.
	Descriptions []string
}

// jsonScriptIDs are the embedded JSON blocks tried first, in order.
var jsonScriptIDs = []string{"data.page.info", "data.pageMeta", "data.page"}

var qualityFieldRe = regexp.MustCompile(`"quality"\s*:\s*(\d+)`)

// Parse extracts item metadata from a page, best effort. It never fails:
// a page with no usable signals yields an Info with zero fields.
func Parse(page string, itemID int) *Info {
	info := &Info{ItemID: itemID, Quality: loot.QualityUnknown}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return info
	}

	for _, sid := range jsonScriptIDs {
		sel := doc.Find("script[type='application/json'][id='" + sid + "']")
		if sel.Length() == 0 {
			continue
		}
		blob := sel.First().Text()
		if name := gjson.Get(blob, "name"); name.Type == gjson.String {
			info.Name = name.String()
		}
		if name := gjson.Get(blob, "tooltip.name"); name.Type == gjson.String {
			info.Name = name.String()
		}
		if q := gjson.Get(blob, "quality"); q.Exists() {
			info.Quality = loot.Quality(q.Int())
		}
		if c := gjson.Get(blob, "classs"); c.Type == gjson.Number {
			info.ClassID = int(c.Int())
			info.HasClass = true
		}
		if f := gjson.Get(blob, "flags"); f.Exists() {
			info.Flags = f.String()
			info.HasFlags = true
		}
		if info.Name != "" {
			break
		}
	}

	doc.Find("script[type='application/ld+json']").Each(func(_ int, s *goquery.Selection) {
		ld := gjson.Parse(s.Text())
		collect := func(v gjson.Result) {
			if info.Name == "" {
				if name := v.Get("name"); name.Type == gjson.String {
					info.Name = name.String()
				}
			}
			if desc := v.Get("description"); desc.Type == gjson.String && desc.String() != "" {
				info.Descriptions = append(info.Descriptions, desc.String())
			}
		}
		if ld.IsArray() {
			for _, v := range ld.Array() {
				collect(v)
			}
		} else if ld.IsObject() {
			collect(ld)
		}
	})

	for _, sel := range []string{"meta[name='description']", "meta[property='og:description']"} {
		if content, ok := doc.Find(sel).Attr("content"); ok && content != "" {
			info.Descriptions = append(info.Descriptions, content)
		}
	}

	if info.Name == "" {
		if h := doc.Find("h1, h2").First(); h.Length() > 0 {
			info.Name = strings.TrimSpace(h.Text())
		} else {
			info.Name = trimTitleSuffix(doc.Find("title").First().Text())
		}
	}

	if info.Quality == loot.QualityUnknown {
		if m := qualityFieldRe.FindStringSubmatch(page); m != nil {
			if q, err := strconv.Atoi(m[1]); err == nil {
				info.Quality = loot.Quality(q)
			}
		}
	}
	if info.Quality == loot.QualityUnknown && info.Name != "" {
		info.Quality = qualityFromClass(doc, info.Name)
	}

	return info
}

// qualityFromClass finds the element carrying the item name and reads the
// tier off its q<digit> CSS class, the way the site colors item links.
func qualityFromClass(doc *goquery.Document, name string) loot.Quality {
	quality := loot.QualityUnknown
	doc.Find("h1, h2, a, b, span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.TrimSpace(s.Text()) != name {
			return true
		}
		for _, class := range strings.Fields(s.AttrOr("class", "")) {
			if len(class) == 2 && class[0] == 'q' && class[1] >= '0' && class[1] <= '9' {
				quality = loot.Quality(class[1] - '0')
				return false
			}
		}
		return true
	})
	return quality
}

// trimTitleSuffix cuts the site name off a <title> string.
func trimTitleSuffix(title string) string {
	title = strings.TrimSpace(title)
	for _, sep := range []string{"—", " - ", " – "} {
		if i := strings.Index(title, sep); i >= 0 {
			title = title[:i]
		}
	}
	return strings.TrimRight(title, " -–—")
}
