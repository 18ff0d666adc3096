package main

import (
	"io"

	"github.com/arloliu/go-gcode/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configFile string

	settings  *Settings
	log       logger.Logger
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "gcodesend",
	Short: "Stream G-code to a serial motion controller",
	Long: `gcodesend streams G-code to 3D printers and CNC controllers over a serial line.

Every line is sent as a numbered, checksummed frame and the next one is only
written after the device acknowledged the previous. Resend requests from the
device are answered with the same frame.

Settings are read from flags, GCODESEND_* environment variables and an optional
gcodesend.yaml in the working directory, in that order of precedence.

Connection:
  Serial:     --port /dev/ttyUSB0 [--baud 250000]
  Simulated:  --simulate`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: teardown,
}

func init() {
	registerFlags(rootCmd)
}

func registerFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()

	flags.StringVar(&configFile, "config", "", "Config file (default ./gcodesend.yaml)")

	// Connection flags
	flags.StringP("port", "p", "", "Serial port device")
	flags.IntP("baud", "b", defaultBaudRate, "Baud rate")
	flags.Bool("simulate", false, "Talk to a built-in simulated controller instead of a serial port")
	flags.Duration("poll-timeout", defaultSettings().PollTimeout, "Read timeout of the I/O loop")
	flags.Duration("close-timeout", defaultSettings().CloseTimeout, "Time to wait for the port to close")

	// Logging flags
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-format", "console", "Log format (console, json, zap)")
	flags.String("log-file", "", "Write logs to a rotated file instead of stderr")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func setup(cmd *cobra.Command, _ []string) error {
	var err error

	settings, err = loadSettings(viper.New(), cmd, configFile)
	if err != nil {
		return err
	}

	log, logCloser, err = newLogger(&settings.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	logger.SetLogger(log)

	return nil
}

func teardown(_ *cobra.Command, _ []string) {
	if logCloser != nil {
		_ = logCloser.Close()
	}
}
