/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/leishu-qiu/kvlined/pkg/config"
	"github.com/leishu-qiu/kvlined/pkg/kvserver"
)

// rootCmd represents the base command: kvserver <port>.
var rootCmd = &cobra.Command{
	Use:   "kvserver <port>",
	Short: "A concurrent in-memory key/value server",
	Long: `kvserver listens for clients on a TCP port, speaking a
line-oriented command protocol (q/a/d/f), and accepts operator commands on
stdin to snapshot, pause, or resume the server.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		port, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid port %q: %w", args[0], err)
		}

		configPath, _ := cmd.Flags().GetString("config")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		cfg := config.Default()
		if configPath != "" {
			cfg, err = config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
		}
		if metricsAddr != "" {
			cfg.MetricsAddr = metricsAddr
		}

		kc := kvserver.New(cfg)
		return kvserver.Run(context.Background(), port, kc, os.Stdin)
	},
}

// Execute runs the root command. It is called by main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().String("config", "", "path to a YAML config file")
	rootCmd.Flags().String("metrics-addr", "", "override the metrics HTTP listen address")
}
