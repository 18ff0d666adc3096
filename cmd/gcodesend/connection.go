package main

import (
	"context"
	"fmt"
	"time"

	"github.com/arloliu/go-gcode/internal/devsim"
	"github.com/arloliu/go-gcode/sender"
)

// handshakeTimeout bounds the wait for the controller's start banner.
const handshakeTimeout = 10 * time.Second

// openSender creates a sender from the global settings, connects it and waits
// for the controller to announce itself.
//
// The caller must Disconnect the returned sender.
func openSender(ctx context.Context, opts ...sender.Option) (*sender.Sender, error) {
	opts = append([]sender.Option{
		sender.WithLogger(log),
		sender.WithPollTimeout(settings.PollTimeout),
		sender.WithCloseTimeout(settings.CloseTimeout),
	}, opts...)

	if settings.Simulate {
		dev := devsim.New(devsim.WithBanner("start"), devsim.WithLogger(log.With("component", "devsim")))
		opts = append(opts,
			sender.WithOpener(dev.Opener()),
			sender.WithBaudConfigurator(dev.BaudConfigurator()),
		)
	}

	cfg, err := sender.NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	s, err := sender.New(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s.AddDiagnosticHandler(func(d sender.Diagnostic) {
		log.Debug("diagnostic", "kind", d.Kind.String(), "line", d.Line)
	})

	device := settings.device()
	if err := s.Connect(device, settings.Baud); err != nil {
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	if err := s.WaitConnected(waitCtx); err != nil {
		_ = s.Disconnect()
		return nil, fmt.Errorf("waiting for %s to start: %w", device, err)
	}

	log.Info("controller ready", "device", device, "baud", s.BaudRate())

	return s, nil
}

func logMetrics(s *sender.Sender) {
	m := s.GetMetrics()
	log.Info("transfer statistics",
		"frames_sent", m.FramesSent.Load(),
		"frames_resent", m.FramesResent.Load(),
		"bytes_written", m.BytesWritten.Load(),
		"acks", m.Acks.Load(),
		"resend_requests", m.ResendRequests.Load(),
		"desyncs", m.Desyncs.Load(),
	)
}
