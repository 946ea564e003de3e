package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/krelborne/wowloot/internal/utils"
	"github.com/krelborne/wowloot/pkg/loot"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

const (
	LOGO = `                             _              _
__      __   ___  __      __ | |  ___    ___  | |_
\ \ /\ / /  / _ \ \ \ /\ / / | | / _ \  / _ \ | __|
 \ V  V /  | (_) | \ V  V /  | || (_) || (_) || |_
  \_/\_/    \___/   \_/\_/   |_| \___/  \___/  \__|

`
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "wowloot",
	Short: "A loot table extractor for private WoW server developers.",
	Long: LOGO + `wowloot scrapes NPC, object and item pages from wowhead, pulls the
loot listings embedded in them, and turns them into ready-to-import SQL
for TrinityCore-style databases, right from your command line.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.wowloot.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("proxy", "", "", "HTTP Proxy (Useful for debugging. Example: http://127.0.0.1:8080)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")

}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	home, err := homedir.Dir()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(home)
		viper.SetConfigName(".wowloot")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			configPath := home + "/.wowloot.yaml"
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s", err)
			}
		}
	}

	// Set default values for all keys
	viper.SetDefault("cache.dir", filepath.Join(home, ".wowloot", "cache"))
	viper.SetDefault("output.dir", "output")
	viper.SetDefault("db.path", filepath.Join(home, ".wowloot", "wowloot.sqlite"))
	viper.SetDefault("extract.maxitemid", loot.DefaultConfig().MaxItemID)
	viper.SetDefault("exclude.ids", "")
	viper.SetDefault("exclude.qualities", "")
	viper.SetDefault("exclude.professions", "")

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)

}
