package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arloliu/go-gcode/sender"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseFlags(t *testing.T, args ...string) *cobra.Command {
	t.Helper()

	cmd := &cobra.Command{Use: "test"}
	registerFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))

	return cmd
}

func TestLoadSettings_Defaults(t *testing.T) {
	cmd := parseFlags(t, "--simulate")

	s, err := loadSettings(viper.New(), cmd, "")
	require.NoError(t, err)

	assert.True(t, s.Simulate)
	assert.Equal(t, defaultBaudRate, s.Baud)
	assert.Equal(t, sender.DefaultPollTimeout, s.PollTimeout)
	assert.Equal(t, sender.DefaultCloseTimeout, s.CloseTimeout)
	assert.Equal(t, "info", s.Log.Level)
	assert.Equal(t, "console", s.Log.Format)
	assert.Equal(t, 10, s.Log.MaxSize)
	assert.Equal(t, simulatedDevice, s.device())
}

func TestLoadSettings_Flags(t *testing.T) {
	cmd := parseFlags(t, "-p", "/dev/ttyUSB0", "-b", "250000", "--log-format", "json", "--poll-timeout", "20ms")

	s, err := loadSettings(viper.New(), cmd, "")
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB0", s.device())
	assert.Equal(t, 250000, s.Baud)
	assert.Equal(t, "json", s.Log.Format)
	assert.Equal(t, 20*time.Millisecond, s.PollTimeout)
}

func TestLoadSettings_Env(t *testing.T) {
	t.Setenv("GCODESEND_BAUD", "57600")
	t.Setenv("GCODESEND_LOG_LEVEL", "debug")
	cmd := parseFlags(t, "--port", "/dev/ttyACM0")

	s, err := loadSettings(viper.New(), cmd, "")
	require.NoError(t, err)

	assert.Equal(t, 57600, s.Baud)
	assert.Equal(t, "debug", s.Log.Level)
}

func TestLoadSettings_File(t *testing.T) {
	file := filepath.Join(t.TempDir(), "gcodesend.yaml")
	content := `port: /dev/ttyS1
baud: 9600
close_timeout: 500ms
log:
  format: zap
  max_backups: 7
`
	require.NoError(t, os.WriteFile(file, []byte(content), 0o600))

	// flags take precedence over the file
	cmd := parseFlags(t, "--baud", "19200")

	s, err := loadSettings(viper.New(), cmd, file)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyS1", s.Port)
	assert.Equal(t, 19200, s.Baud)
	assert.Equal(t, 500*time.Millisecond, s.CloseTimeout)
	assert.Equal(t, "zap", s.Log.Format)
	assert.Equal(t, 7, s.Log.MaxBackups)
	assert.Equal(t, "info", s.Log.Level)
}

func TestLoadSettings_Errors(t *testing.T) {
	t.Run("missing explicit file", func(t *testing.T) {
		cmd := parseFlags(t, "--simulate")
		_, err := loadSettings(viper.New(), cmd, filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
	})

	t.Run("no port", func(t *testing.T) {
		_, err := loadSettings(viper.New(), parseFlags(t), "")
		require.ErrorIs(t, err, errNoPort)
	})

	t.Run("invalid baud", func(t *testing.T) {
		_, err := loadSettings(viper.New(), parseFlags(t, "--simulate", "--baud", "0"), "")
		require.ErrorIs(t, err, sender.ErrInvalidBaudRate)
	})

	t.Run("unknown log format", func(t *testing.T) {
		_, err := loadSettings(viper.New(), parseFlags(t, "--simulate", "--log-format", "xml"), "")
		require.Error(t, err)
	})
}
