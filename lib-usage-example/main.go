package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/krelborne/wowloot/pkg/extract"
	"github.com/krelborne/wowloot/pkg/loot"
	"github.com/krelborne/wowloot/pkg/pagecache"
	"github.com/krelborne/wowloot/pkg/wowhead"
)

func main() {
	// Usage: go run *.go -npc 1234 [-cache /path/to/cache]

	npcFlag := flag.Int("npc", 0, "NPC page ID")
	cacheFlag := flag.String("cache", "wowloot-cache", "Page cache directory")

	// Parse the command-line flags
	flag.Parse()

	if *npcFlag == 0 {
		fmt.Println("NPC ID is required. Please provide it using the -npc flag.")
		return
	}

	// Objects and items work the same way, just swap the kind
	x := &extract.Extractor{
		Client: wowhead.NewClient(pagecache.New(*cacheFlag), nil),
		Config: loot.DefaultConfig(),
	}

	res, err := x.Run(context.Background(), loot.KindNPC, *npcFlag)
	if err != nil {
		fmt.Println("extraction failed:", err)
		return
	}

	for _, w := range res.Warnings {
		fmt.Println("warning:", w)
	}
	fmt.Println(res.SQL)
}
