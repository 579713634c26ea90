// Command tasmoctl is a command-line client for Tasmota devices, built on
// the tasmoctl library's MqttBroker/Device facade.
package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/northlane/tasmoctl/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cmdOutput io.Writer
	errOutput io.Writer

	brokerHost string
	brokerPort uint16
	username   string
	password   string
	topic      string
	cfgFile    string
	logLevel   string
	logFormat  string
	logOutput  string
	logFile    string
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:   "tasmoctl",
	Short: "tasmoctl controls Tasmota-firmware smart devices over MQTT",
	Long: `tasmoctl is a command-line client for Tasmota relays, dimmers, and
RGB/CCT lights. It talks to one device at a time, addressed by its MQTT
topic, over a broker connection configured by flags, environment variables,
or a config file (see --config).`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogging()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.tasmoctl.yaml)")
	rootCmd.PersistentFlags().StringVar(&brokerHost, "host", "localhost", "MQTT broker host")
	rootCmd.PersistentFlags().Uint16Var(&brokerPort, "port", 1883, "MQTT broker port")
	rootCmd.PersistentFlags().StringVar(&username, "username", "", "MQTT username")
	rootCmd.PersistentFlags().StringVar(&password, "password", "", "MQTT password")
	rootCmd.PersistentFlags().StringVar(&topic, "topic", "", "device MQTT topic (required)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", logging.DefaultLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", logging.DefaultFormat, "log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&logOutput, "log-output", logging.DefaultOutput, "log output (stdout, stderr, file, off)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "log file path (with --log-output file)")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress all logging output")

	viper.BindPFlag("host", rootCmd.PersistentFlags().Lookup("host"))
	viper.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("username", rootCmd.PersistentFlags().Lookup("username"))
	viper.BindPFlag("password", rootCmd.PersistentFlags().Lookup("password"))
	viper.BindPFlag("topic", rootCmd.PersistentFlags().Lookup("topic"))
	viper.BindPFlag(logging.KeyLevel, rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag(logging.KeyFormat, rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag(logging.KeyOutput, rootCmd.PersistentFlags().Lookup("log-output"))
	viper.BindPFlag(logging.KeyFile, rootCmd.PersistentFlags().Lookup("log-file"))

	rootCmd.AddCommand(powerCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(energyCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(versionCmd)
}

// initConfig wires viper's config-file search path. Values already bound to
// flags above win unless the flag was left at its default.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName(".tasmoctl")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("TASMOCTL")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		brokerHost = viper.GetString("host")
		if p := viper.GetInt("port"); p != 0 {
			brokerPort = uint16(p)
		}
		username = viper.GetString("username")
		password = viper.GetString("password")
		if t := viper.GetString("topic"); t != "" {
			topic = t
		}
	}
}

// initLogging builds the process-wide slog default from the bound log-*
// keys, so flags, the config file, and TASMOCTL_* env vars all feed the
// same logging.Config. --quiet overrides whatever output they selected.
func initLogging() error {
	cfg := logging.FromViper(viper.GetViper())
	if quiet {
		cfg.Output = "off"
	}
	logger, _, _, err := logging.Build(cfg)
	if err != nil {
		return err
	}
	level, _ := logging.ParseLevel(cfg.Level)
	logging.ApplyGlobal(logger, level)
	return nil
}

// GetRootCmd returns the root command, mainly for tests.
func GetRootCmd() *cobra.Command { return rootCmd }

// Execute runs the CLI, logging and exiting non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func init() {
	cmdOutput = os.Stdout
	errOutput = os.Stderr
	rootCmd.SetOut(cmdOutput)
	rootCmd.SetErr(errOutput)
}
