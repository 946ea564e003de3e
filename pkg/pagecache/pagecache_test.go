package pagecache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/krelborne/wowloot/pkg/loot"
)

func TestPutGetRoundtrip(t *testing.T) {
	store := New(t.TempDir())

	if _, ok := store.Get(loot.KindNPC, 1234); ok {
		t.Fatal("expected miss on empty store")
	}

	body := []byte("<html>npc page</html>")
	if err := store.Put(loot.KindNPC, 1234, body); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, ok := store.Get(loot.KindNPC, 1234)
	if !ok {
		t.Fatal("expected hit after Put")
	}
	if string(got) != string(body) {
		t.Fatalf("payload mismatch: got %q", got)
	}

	// Same ID under another kind is a distinct record.
	if _, ok := store.Get(loot.KindObject, 1234); ok {
		t.Fatal("object 1234 should not share npc 1234's record")
	}
}

func TestLayoutOnDisk(t *testing.T) {
	root := t.TempDir()
	store := New(root)
	if err := store.Put(loot.KindObject, 42, []byte("x")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "object", "42.html")); err != nil {
		t.Fatalf("expected object/42.html on disk: %v", err)
	}
}

func TestStatsAndClear(t *testing.T) {
	store := New(t.TempDir())
	pages := []struct {
		kind loot.Kind
		id   int
	}{
		{loot.KindNPC, 1},
		{loot.KindNPC, 2},
		{loot.KindItem, 7},
	}
	for _, p := range pages {
		if err := store.Put(p.kind, p.id, []byte("body")); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	stats, err := store.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	byKind := map[loot.Kind]KindStats{}
	for _, s := range stats {
		byKind[s.Kind] = s
	}
	if byKind[loot.KindNPC].Records != 2 || byKind[loot.KindItem].Records != 1 {
		t.Fatalf("unexpected stats: %#v", stats)
	}
	if byKind[loot.KindNPC].Bytes == 0 {
		t.Fatal("expected non-zero byte count")
	}

	removed, err := store.Clear()
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 removed records, got %d", removed)
	}
	if _, ok := store.Get(loot.KindNPC, 1); ok {
		t.Fatal("expected miss after Clear")
	}
}

func TestStatsOnMissingRoot(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "never-created"))
	stats, err := store.Stats()
	if err != nil {
		t.Fatalf("Stats on missing root failed: %v", err)
	}
	if len(stats) != 0 {
		t.Fatalf("expected empty stats, got %#v", stats)
	}
}
