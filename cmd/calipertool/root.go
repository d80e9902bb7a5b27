// Package main implements calipertool, a small CLI for inspecting a
// caliper runtime: it builds a Facade from the same configuration a
// real embedder would use, runs it, and prints the attribute registry
// or node trie it produced.
//
// Flag/env binding follows the pack's cmd/serve/root.go pattern:
// viper.BindPFlags at the start of each subcommand's RunE (via
// runDemo), SetEnvPrefix + SetEnvKeyReplacer +
// AutomaticEnv in an initConfig hook registered via cobra.OnInitialize.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gocaliper/caliper/config"
)

var rootCmd = &cobra.Command{
	Use:   "calipertool",
	Short: "Inspect a caliper runtime",
	Long: `calipertool (v` + toolVersion + `)

A command-line inspector for the caliper performance-annotation runtime:
dump, attrs, and nodes build a Facade from the configured options and
print what it recorded.`,
}

const toolVersion = "0.1.0"

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config-file", "", "path to a YAML config file")
	rootCmd.PersistentFlags().String("output", "", "metadata writer to use (csv, redis, none)")
	rootCmd.PersistentFlags().Int("node-pool-size", 0, "bytes to pre-reserve in the node trie's arena")

	rootCmd.AddCommand(dumpCmd, attrsCmd, nodesCmd, versionCmd)
}

func initConfig() {
	viper.SetEnvPrefix("caliper")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func bindFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// buildConfig resolves a config.Config from (in priority order) an
// explicit --config-file, then flag/env overrides, then defaults.
func buildConfig() (*config.Config, error) {
	if path := viper.GetString("config-file"); path != "" {
		return config.LoadFromFile(path)
	}

	var opts []config.Option
	if v := viper.GetString("output"); v != "" {
		opts = append(opts, config.WithOutput(v))
	}
	if v := viper.GetInt("node-pool-size"); v > 0 {
		opts = append(opts, config.WithNodePoolSize(v))
	}
	return config.New(opts...)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print calipertool's version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("calipertool v%s\n", toolVersion)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
