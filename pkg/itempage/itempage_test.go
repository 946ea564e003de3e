package itempage

import (
	"testing"

	"github.com/krelborne/wowloot/pkg/loot"
)

func TestParseEmbeddedJSON(t *testing.T) {
	page := `<html><head><title>ignored</title>
<script type="application/json" id="data.page.info">{"name":"Formula: Enchant Boots","quality":2,"classs":9,"flags":"0x40"}</script>
</head><body></body></html>`

	info := Parse(page, 22530)
	if info.ItemID != 22530 {
		t.Fatalf("item ID = %d", info.ItemID)
	}
	if info.Name != "Formula: Enchant Boots" {
		t.Fatalf("name = %q", info.Name)
	}
	if info.Quality != loot.QualityUncommon {
		t.Fatalf("quality = %v", info.Quality)
	}
	if !info.HasClass || info.ClassID != 9 {
		t.Fatalf("class not carried: %+v", info)
	}
	if !info.HasFlags || info.Flags != "0x40" {
		t.Fatalf("flags not carried: %+v", info)
	}
}

func TestParseCollectsDescriptions(t *testing.T) {
	page := `<html><head>
<meta name="description" content="Requires Enchanting (225). A formula drop.">
<meta property="og:description" content="Teaches you how to enchant boots.">
<script type="application/ld+json">{"name":"Formula: Enchant Boots","description":"This formula is used by enchanters."}</script>
</head><body></body></html>`

	info := Parse(page, 1)
	if info.Name != "Formula: Enchant Boots" {
		t.Fatalf("name = %q", info.Name)
	}
	if len(info.Descriptions) != 3 {
		t.Fatalf("expected 3 descriptions, got %#v", info.Descriptions)
	}
}

func TestParseNameFallbacks(t *testing.T) {
	page := `<html><head><title>Worn Dagger - Item - Database</title></head>
<body><h1>Worn Dagger</h1></body></html>`
	if info := Parse(page, 2); info.Name != "Worn Dagger" {
		t.Fatalf("heading fallback gave %q", info.Name)
	}

	titleOnly := `<html><head><title>Worn Dagger - Item - Database</title></head><body></body></html>`
	if info := Parse(titleOnly, 2); info.Name != "Worn Dagger" {
		t.Fatalf("title fallback gave %q", info.Name)
	}
}

func TestParseQualityFromRawField(t *testing.T) {
	page := `<html><head><title>Thing</title></head><body>
<script>var g_items = {}; g_items[123] = {"name":"Thing","quality":4};</script>
<h1>Thing</h1></body></html>`

	info := Parse(page, 123)
	if info.Quality != loot.QualityEpic {
		t.Fatalf("quality = %v, want epic", info.Quality)
	}
}

func TestParseQualityFromLinkClass(t *testing.T) {
	page := `<html><head><title>x</title></head><body>
<h1>Krol Blade</h1>
<a class="q3 itemlink" href="/item=2244">Krol Blade</a>
</body></html>`

	info := Parse(page, 2244)
	if info.Quality != loot.QualityRare {
		t.Fatalf("quality = %v, want rare", info.Quality)
	}
}

func TestParseEmptyPage(t *testing.T) {
	info := Parse("", 5)
	if info.ItemID != 5 {
		t.Fatalf("item ID = %d", info.ItemID)
	}
	if info.Quality != loot.QualityUnknown || info.HasClass || info.HasFlags {
		t.Fatalf("expected zeroed info, got %+v", info)
	}
}

func TestTrimTitleSuffix(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Krol Blade - Item - Database", "Krol Blade"},
		{"Krol Blade", "Krol Blade"},
		{"  Krol Blade — Site ", "Krol Blade"},
	}
	for _, c := range cases {
		if got := trimTitleSuffix(c.in); got != c.want {
			t.Fatalf("trimTitleSuffix(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
