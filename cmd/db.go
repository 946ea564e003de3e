package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/krelborne/wowloot/pkg/sqlgen"
	"github.com/krelborne/wowloot/pkg/storage"
)

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Interact with the wowloot ledger",
}

// dbShellCmd represents the shell command
var dbShellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive shell to the ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := ledgerPath(cmd)

		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return fmt.Errorf("ledger file not found: %s", dbPath)
		}

		// Check if sqlite3 is in PATH
		sqlitePath, err := exec.LookPath("sqlite3")
		if err != nil {
			return fmt.Errorf("sqlite3 command not found in your PATH. Please install it to use the db shell")
		}

		// Print schema first
		fmt.Println("--> Ledger schema:")
		schemaCmd := exec.Command(sqlitePath, dbPath, ".schema")
		schemaCmd.Stdout = os.Stdout
		schemaCmd.Stderr = os.Stderr
		if err := schemaCmd.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: couldn't retrieve schema: %v\n", err)
		}
		fmt.Println("\n--> Starting interactive shell... (Ctrl+D to exit)")

		c := exec.Command(sqlitePath, dbPath)
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr

		return c.Run()
	},
}

// dbStatsCmd represents the stats command
var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Prints statistics about the targets and items in the ledger.",
	Long:  "Prints statistics about the targets and items in the ledger.",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := storage.Open(ledgerPath(cmd))
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats(context.Background())
		if err != nil {
			return err
		}

		if len(stats) == 0 {
			fmt.Println("No data in the ledger to generate stats.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "KIND\tTARGETS\tITEMS\t")

		var totalTargets, totalItems int
		for _, s := range stats {
			fmt.Fprintf(w, "%s\t%d\t%d\t\n", s.Kind, s.TargetCount, s.ItemCount)
			totalTargets += s.TargetCount
			totalItems += s.ItemCount
		}

		fmt.Fprintln(w, " \t \t \t")
		fmt.Fprintf(w, "TOTAL\t%d\t%d\t\n", totalTargets, totalItems)

		w.Flush()

		return nil
	},
}

var dbChangesCmd = &cobra.Command{
	Use:   "changes",
	Short: "Show recent loot changes (default 50)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		dbPath := ledgerPath(cmd)
		limit, _ := cmd.Flags().GetInt("limit")
		if _, err := os.Stat(dbPath); err != nil {
			return fmt.Errorf("ledger not found: %s", dbPath)
		}
		db, err := storage.Open(dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
		changes, err := db.RecentChanges(context.Background(), limit)
		if err != nil {
			return err
		}
		for _, c := range changes {
			ts := c.OccurredAt.Format("2006-01-02 15:04:05")
			fmt.Printf("%s  %-7s  %s %d  %s (%d)%s\n", ts, c.ChangeType, c.Kind, c.TargetID, c.Name, c.ItemID, chanceSuffix(c))
		}
		return nil
	},
}

var dbItemsCmd = &cobra.Command{
	Use:   "items",
	Short: "List ledger items matching filters",
	RunE: func(cmd *cobra.Command, _ []string) error {
		dbPath := ledgerPath(cmd)
		if _, err := os.Stat(dbPath); err != nil {
			return fmt.Errorf("ledger not found: %s", dbPath)
		}
		db, err := storage.Open(dbPath)
		if err != nil {
			return err
		}
		defer db.Close()

		kind, _ := cmd.Flags().GetString("kind")
		target, _ := cmd.Flags().GetInt("target")
		quality, _ := cmd.Flags().GetString("quality")
		profession, _ := cmd.Flags().GetString("profession")

		rows, err := db.ListItems(context.Background(), storage.ListOptions{
			Kind:       kind,
			TargetID:   target,
			Quality:    quality,
			Profession: profession,
		})
		if err != nil {
			return err
		}

		for _, r := range rows {
			tags := ""
			if r.Quest {
				tags += " quest"
			}
			if len(r.Professions) > 0 {
				tags += " " + strings.Join(r.Professions, "/")
			}
			fmt.Printf("%s %d  %d  %s%%  %s%s  %s\n", r.Kind, r.TargetID, r.ItemID, sqlgen.FormatChance(r.Chance), r.Quality, tags, r.Name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbShellCmd)
	dbCmd.AddCommand(dbStatsCmd)
	dbCmd.AddCommand(dbChangesCmd)
	dbCmd.AddCommand(dbItemsCmd)
	dbCmd.PersistentFlags().String("dbpath", "", "Path to SQLite ledger file (default: ~/.wowloot/wowloot.sqlite)")

	dbChangesCmd.Flags().Int("limit", 50, "Number of recent changes to show")

	dbItemsCmd.Flags().String("kind", "all", "Filter by page kind (npc, object, item)")
	dbItemsCmd.Flags().Int("target", 0, "Filter by target page ID")
	dbItemsCmd.Flags().String("quality", "", "Filter by quality name")
	dbItemsCmd.Flags().String("profession", "", "Filter by recipe profession")
}

// ledgerPath resolves the ledger location: flag first, config second.
func ledgerPath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("dbpath")
	if path == "" {
		path = viper.GetString("db.path")
	}
	return path
}

func chanceSuffix(c storage.Change) string {
	switch c.ChangeType {
	case "added":
		return fmt.Sprintf("  at %s%%", sqlgen.FormatChance(c.NewChance))
	case "changed":
		return fmt.Sprintf("  %s%% -> %s%%", sqlgen.FormatChance(c.OldChance), sqlgen.FormatChance(c.NewChance))
	}
	return ""
}
