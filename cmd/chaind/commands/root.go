package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gossipchain/core/config"
	"gossipchain/version"
)

var (
	conf = config.NewDefaultConfig()
)

// RootCmd is the root command for chaind
var RootCmd = &cobra.Command{
	Use:              "chaind",
	Short:            "gossip ledger node",
	TraverseChildren: true,
}

// VersionCmd displays the version of chaind being used
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version info",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Version)
	},
}

// AddConfigFlags adds the flags shared by every command reading a Config.
func AddConfigFlags(cmd *cobra.Command) {
	cmd.Flags().String("datadir", conf.DataDir, "Directory for the quarantine store and chaind.toml")
	cmd.Flags().String("log", conf.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", conf.LogFile, "Also write log lines to this file")
}

// loadConfig binds the command flags, reads chaind.toml from the data
// directory if present, and rebuilds conf from the result.
func loadConfig(cmd *cobra.Command, args []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	dataDir := viper.GetString("datadir")
	logger := conf.Logger("config")

	viper.SetConfigName("chaind")
	viper.SetConfigType("toml")
	if dataDir != "" {
		viper.AddConfigPath(dataDir)
	}

	if err := viper.ReadInConfig(); err == nil {
		logger.Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		logger.Debugf("No config file found in: %s", dataDir)
	} else {
		return err
	}

	c := config.NewDefaultConfig()
	if err := viper.Unmarshal(c); err != nil {
		return err
	}
	conf = c
	return nil
}
