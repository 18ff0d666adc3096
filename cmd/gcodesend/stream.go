package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/arloliu/go-gcode/frame"
	"github.com/spf13/cobra"
)

var streamCmd = &cobra.Command{
	Use:   "stream <file>",
	Short: "Stream a G-code program to the controller",
	Long: `Connect to the controller, wait for it to start, send every line of the
program and wait until the controller acknowledged the last one.

Blank lines and lines holding only a comment are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runStream,
}

func init() {
	rootCmd.AddCommand(streamCmd)
}

func runStream(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	lines, err := readProgram(f)
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	s, err := openSender(ctx)
	if err != nil {
		return err
	}

	log.Info("streaming program", "file", args[0], "lines", len(lines))
	s.SendLines(lines)

	waitErr := s.WaitQueueEmpty(ctx)
	if waitErr == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "sent %d lines\n", len(lines))
	}
	logMetrics(s)

	if err := s.Disconnect(); err != nil {
		return err
	}

	return waitErr
}

// readProgram returns the lines of a G-code program that carry a command.
// Comments are left in place; the frame encoder strips them.
func readProgram(r io.Reader) ([]string, error) {
	var lines []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if frame.Payload(line) == "" {
			continue
		}
		lines = append(lines, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return lines, nil
}
