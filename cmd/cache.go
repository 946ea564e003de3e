package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/krelborne/wowloot/pkg/pagecache"
)

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the page cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Prints statistics about the cached pages.",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := pagecache.New(cachePath(cmd))
		stats, err := store.Stats()
		if err != nil {
			return err
		}

		if len(stats) == 0 {
			fmt.Printf("Cache is empty: %s\n", store.Root())
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "KIND\tPAGES\tSIZE\t")

		var totalPages int
		var totalBytes int64
		for _, s := range stats {
			fmt.Fprintf(w, "%s\t%d\t%s\t\n", s.Kind, s.Records, formatBytes(s.Bytes))
			totalPages += s.Records
			totalBytes += s.Bytes
		}

		fmt.Fprintln(w, " \t \t \t")
		fmt.Fprintf(w, "TOTAL\t%d\t%s\t\n", totalPages, formatBytes(totalBytes))

		w.Flush()

		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached page",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := pagecache.New(cachePath(cmd))
		removed, err := store.Clear()
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d cached pages from %s\n", removed, store.Root())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.PersistentFlags().String("cachedir", "", "Directory for cached pages (default: ~/.wowloot/cache)")
}

// cachePath resolves the cache location: flag first, config second.
func cachePath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("cachedir")
	if path == "" {
		path = viper.GetString("cache.dir")
	}
	return path
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMG"[exp])
}
