// Package cmd contains the facefind CLI commands.
package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "facefind",
	Short: "Face identity search over event photo collections",
	Long: `Facefind lets people find themselves in event photo collections.
Photos uploaded to an event are run through face embedding extraction;
a selfie query then returns every photo the same person appears in.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
