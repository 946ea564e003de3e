package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/krelborne/wowloot/internal/utils"
	"github.com/krelborne/wowloot/pkg/extract"
	"github.com/krelborne/wowloot/pkg/filter"
	"github.com/krelborne/wowloot/pkg/loot"
	"github.com/krelborne/wowloot/pkg/pagecache"
	"github.com/krelborne/wowloot/pkg/sqlgen"
	"github.com/krelborne/wowloot/pkg/storage"
	"github.com/krelborne/wowloot/pkg/whttp"
	"github.com/krelborne/wowloot/pkg/wowhead"
)

// extractCmd implements: wowloot extract
//
//	--npc/--object/--item   Comma-separated page IDs per kind
//	--outdir                Where generated .sql files land
//	--stdout                Print SQL instead of writing files
//	--db / --dbpath         Record runs in the SQLite ledger
//	--cachedir              Page cache location
//	--maxitemid             Highest item ID to keep
//	--exclude-*             Exclusion rules applied before rendering
//
// Uses global flags from root (proxy, loglevel, config).
var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract loot tables and render SQL",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			return fmt.Errorf("unknown command: '%s'. See 'wowloot extract --help'", args[0])
		}

		npc, _ := cmd.Flags().GetString("npc")
		object, _ := cmd.Flags().GetString("object")
		item, _ := cmd.Flags().GetString("item")
		targets, err := parseTargets(npc, object, item)
		if err != nil {
			return err
		}
		if len(targets) == 0 {
			return fmt.Errorf("nothing to extract: pass --npc, --object or --item")
		}

		proxy, _ := cmd.Flags().GetString("proxy")
		toStdout, _ := cmd.Flags().GetBool("stdout")
		useDB, _ := cmd.Flags().GetBool("db")
		cacheDir := stringSetting(cmd, "cachedir", "cache.dir")
		outDir := stringSetting(cmd, "outdir", "output.dir")
		dbPath := stringSetting(cmd, "dbpath", "db.path")

		cfg := loot.DefaultConfig()
		cfg.MaxItemID = intSetting(cmd, "maxitemid", "extract.maxitemid")

		rules := filter.ParseRules(
			stringSetting(cmd, "exclude-ids", "exclude.ids"),
			stringSetting(cmd, "exclude-qualities", "exclude.qualities"),
			stringSetting(cmd, "exclude-professions", "exclude.professions"),
			cfg,
		)

		httpClient, err := whttp.NewHTTPClient(proxy)
		if err != nil {
			return err
		}
		client := wowhead.NewClient(pagecache.New(cacheDir), httpClient)

		var db *storage.DB
		if useDB {
			lock, err := utils.NewDBLock(dbPath)
			if err != nil {
				return err
			}
			if err := lock.Lock(); err != nil {
				return err
			}
			defer lock.Unlock()

			if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
				return err
			}
			db, err = storage.Open(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()
		}

		x := &extract.Extractor{Client: client, Config: cfg, Rules: rules, Ledger: db}
		results, errs := x.RunBatch(cmd.Context(), targets)

		for _, res := range results {
			if toStdout {
				fmt.Println(res.SQL)
			} else {
				path, err := writeSQLFile(outDir, res)
				if err != nil {
					return err
				}
				utils.Log.Infof("Wrote %s", path)
			}
			printChanges(res.Changes)
		}

		if len(errs) > 0 {
			return fmt.Errorf("%d of %d targets failed", len(errs), len(targets))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().String("npc", "", "NPC page IDs, comma-separated")
	extractCmd.Flags().String("object", "", "Object page IDs, comma-separated")
	extractCmd.Flags().String("item", "", "Item page IDs, comma-separated (for containers that hold loot)")
	extractCmd.Flags().StringP("outdir", "o", "", "Directory for generated .sql files (default: output)")
	extractCmd.Flags().Bool("stdout", false, "Print SQL to stdout instead of writing files")
	extractCmd.Flags().Bool("db", false, "Record results in the ledger and print changes")
	extractCmd.Flags().String("dbpath", "", "Path to SQLite ledger file (default: ~/.wowloot/wowloot.sqlite)")
	extractCmd.Flags().String("cachedir", "", "Directory for cached pages (default: ~/.wowloot/cache)")
	extractCmd.Flags().Int("maxitemid", 0, "Highest item ID to keep")
	extractCmd.Flags().String("exclude-ids", "", "Item IDs to exclude, comma-separated")
	extractCmd.Flags().String("exclude-qualities", "", "Quality names to exclude, comma-separated (poor, common, green, rare, epic, legendary, artifact)")
	extractCmd.Flags().String("exclude-professions", "", "Professions whose recipes to exclude, comma-separated")
}

// parseTargets builds the extraction list from the raw per-kind flag
// values. Any malformed ID aborts the run rather than silently skipping
// a requested page.
func parseTargets(npc, object, item string) ([]extract.Target, error) {
	kinds := []struct {
		raw  string
		flag string
		kind loot.Kind
	}{
		{npc, "npc", loot.KindNPC},
		{object, "object", loot.KindObject},
		{item, "item", loot.KindItem},
	}

	var targets []extract.Target
	for _, k := range kinds {
		if k.raw == "" {
			continue
		}
		ids, err := utils.ParseIDList(k.raw)
		if err != nil {
			return nil, fmt.Errorf("invalid --%s value: %w", k.flag, err)
		}
		for _, id := range ids {
			targets = append(targets, extract.Target{Kind: k.kind, ID: id})
		}
	}
	return targets, nil
}

// stringSetting prefers an explicitly set flag over the config value.
func stringSetting(cmd *cobra.Command, flag, key string) string {
	if cmd.Flags().Changed(flag) {
		v, _ := cmd.Flags().GetString(flag)
		return v
	}
	return viper.GetString(key)
}

func intSetting(cmd *cobra.Command, flag, key string) int {
	if cmd.Flags().Changed(flag) {
		v, _ := cmd.Flags().GetInt(flag)
		return v
	}
	return viper.GetInt(key)
}

func writeSQLFile(outDir string, res *extract.Result) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	name := utils.SanitizeFilename(fmt.Sprintf("loot_%s_%d", res.Kind, res.TargetID), 100) + ".sql"
	path := filepath.Join(outDir, name)
	if err := os.WriteFile(path, []byte(res.SQL), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func printChanges(changes []storage.Change) {
	for _, c := range changes {
		switch c.ChangeType {
		case "added":
			fmt.Printf("[+] %s %d: %s (%d) at %s%%\n", c.Kind, c.TargetID, c.Name, c.ItemID, sqlgen.FormatChance(c.NewChance))
		case "changed":
			fmt.Printf("[~] %s %d: %s (%d) %s%% -> %s%%\n", c.Kind, c.TargetID, c.Name, c.ItemID, sqlgen.FormatChance(c.OldChance), sqlgen.FormatChance(c.NewChance))
		case "removed":
			fmt.Printf("[-] %s %d: %s (%d)\n", c.Kind, c.TargetID, c.Name, c.ItemID)
		}
	}
}
