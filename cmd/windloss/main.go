// Command windloss estimates hurricane wind losses for a building inventory
// under one or more wind scenarios.
//
// Usage:
//
//	windloss run \
//	  --scenarios ida_1971,ida_2021,ida_2071 \
//	  --wind-dir data/wind \
//	  --buildings data/nsi/nsi_2022_22.csv \
//	  --hazus-dir data/hazus \
//	  --output-dir out
//
//	windloss validate --hazus-dir data/hazus
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "windloss",
	Short: "Hazus-style hurricane wind loss estimation",
	Long: `windloss converts gridded hurricane wind fields to gust speeds, joins them
to a building inventory, characterizes every building with the Hazus
hurricane methodology and interpolates structure and contents losses from
the Hazus damage functions.`,
	SilenceUsage: true,
}

var methodologyPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&methodologyPath, "methodology", "",
		"YAML file overriding the built-in Hazus methodology parameters")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
