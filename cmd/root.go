package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jefvlamings/reolink-feed/cmd/cleanup"
	"github.com/jefvlamings/reolink-feed/cmd/serve"
	"github.com/jefvlamings/reolink-feed/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "reolink-feed",
		Short: "Camera detection feed daemon",
		Long:  "Correlates camera detection signals from a smart-home hub into a timeline of items with snapshots and cached recordings.",
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, settings); err != nil {
		cobra.CheckErr(err)
	}

	serveCmd := serve.Command(settings)
	cleanupCmd := cleanup.Command(settings)

	subcommands := []*cobra.Command{
		serveCmd,
		cleanupCmd,
	}

	rootCmd.AddCommand(subcommands...)

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Hub.BaseURL, "hub-url", viper.GetString("hub.baseurl"), "Base URL of the hub API")
	rootCmd.PersistentFlags().StringVar(&settings.Feed.StorePath, "store", viper.GetString("feed.storepath"), "Path of the timeline document")
	rootCmd.PersistentFlags().StringVar(&settings.Feed.MediaRoot, "media-root", viper.GetString("feed.mediaroot"), "Directory for cached snapshots and recordings")

	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("error binding debug flag: %w", err)
	}
	if err := viper.BindPFlag("hub.baseurl", rootCmd.PersistentFlags().Lookup("hub-url")); err != nil {
		return fmt.Errorf("error binding hub-url flag: %w", err)
	}
	if err := viper.BindPFlag("feed.storepath", rootCmd.PersistentFlags().Lookup("store")); err != nil {
		return fmt.Errorf("error binding store flag: %w", err)
	}
	if err := viper.BindPFlag("feed.mediaroot", rootCmd.PersistentFlags().Lookup("media-root")); err != nil {
		return fmt.Errorf("error binding media-root flag: %w", err)
	}
	return nil
}
