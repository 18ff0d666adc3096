package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/arloliu/go-gcode/logger"
	"github.com/arloliu/go-gcode/sender"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	defaultBaudRate = 115200
	simulatedDevice = "sim"
)

var errNoPort = errors.New("no serial port given, use --port or --simulate")

// Settings is the merged configuration of the command line tool.
type Settings struct {
	Port         string        `mapstructure:"port"`
	Baud         int           `mapstructure:"baud"`
	Simulate     bool          `mapstructure:"simulate"`
	PollTimeout  time.Duration `mapstructure:"poll_timeout"`
	CloseTimeout time.Duration `mapstructure:"close_timeout"`
	Log          LogSettings   `mapstructure:"log"`
}

// LogSettings configures the log output.
type LogSettings struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

func defaultSettings() Settings {
	return Settings{
		Baud:         defaultBaudRate,
		PollTimeout:  sender.DefaultPollTimeout,
		CloseTimeout: sender.DefaultCloseTimeout,
		Log: LogSettings{
			Level:      "info",
			Format:     "console",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		},
	}
}

// flagKeys maps persistent flags to their config keys.
var flagKeys = map[string]string{
	"port":          "port",
	"baud":          "baud",
	"simulate":      "simulate",
	"poll-timeout":  "poll_timeout",
	"close-timeout": "close_timeout",
	"log-level":     "log.level",
	"log-format":    "log.format",
	"log-file":      "log.file",
}

// loadSettings merges defaults, the config file, GCODESEND_* environment
// variables and the flags of cmd into Settings.
//
// A missing config file is not an error unless file names one explicitly.
func loadSettings(v *viper.Viper, cmd *cobra.Command, file string) (*Settings, error) {
	setDefaults(v)

	v.SetEnvPrefix("GCODESEND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("gcodesend")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &s, nil
}

func setDefaults(v *viper.Viper) {
	d := defaultSettings()

	v.SetDefault("port", d.Port)
	v.SetDefault("baud", d.Baud)
	v.SetDefault("simulate", d.Simulate)
	v.SetDefault("poll_timeout", d.PollTimeout)
	v.SetDefault("close_timeout", d.CloseTimeout)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size", d.Log.MaxSize)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age", d.Log.MaxAge)
	v.SetDefault("log.compress", d.Log.Compress)
}

func (s *Settings) validate() error {
	if s.Port == "" && !s.Simulate {
		return errNoPort
	}

	if s.Baud <= 0 {
		return fmt.Errorf("%w: %d", sender.ErrInvalidBaudRate, s.Baud)
	}

	if _, err := logger.ParseFormat(s.Log.Format); err != nil {
		return err
	}

	return nil
}

// device returns the name passed to Connect.
func (s *Settings) device() string {
	if s.Simulate && s.Port == "" {
		return simulatedDevice
	}

	return s.Port
}
