package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/arloliu/go-gcode/frame"
	"github.com/arloliu/go-gcode/sender"
	"github.com/spf13/cobra"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Send G-code typed on stdin and print what the controller answers",
	Long: `Open an interactive session with the controller. Each line read from stdin
is queued and sent; every line the controller prints is echoed to stdout.

Lines starting with '!' are local commands:
  !pause    hold the queue
  !resume   release the queue
  !status   print queue and line number state
  !quit     wait for queued lines and exit`,
	Args: cobra.NoArgs,
	RunE: runConsole,
}

func init() {
	rootCmd.AddCommand(consoleCmd)
}

func runConsole(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	out := cmd.OutOrStdout()
	s, err := openSender(ctx, sender.WithInboundHandler(func(line string) {
		fmt.Fprintf(out, "< %s\n", line)
	}))
	if err != nil {
		return err
	}

	lines := make(chan string)
	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	var loopErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok || strings.TrimSpace(line) == "!quit" {
				loopErr = s.WaitQueueEmpty(ctx)
				break loop
			}
			consoleLine(s, out, line)
		}

		if s.ErrorStatus() {
			loopErr = s.Err()
			break
		}
	}

	if err := s.Disconnect(); err != nil {
		return err
	}

	return loopErr
}

func consoleLine(s *sender.Sender, out io.Writer, line string) {
	switch strings.TrimSpace(line) {
	case "!pause":
		s.PauseQueue()
	case "!resume":
		s.ResumeQueue()
	case "!status":
		fmt.Fprintf(out, "queued=%d line=%d paused=%t connected=%t\n",
			s.QueueSize(), s.LineNumber(), s.IsPaused(), s.IsConnected())
	default:
		if frame.Payload(line) != "" {
			s.Send(line)
		}
	}
}
