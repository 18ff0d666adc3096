/*
Package sender streams G-code lines to a serial motion controller.

A Sender owns one serial connection. Lines are queued with Send or SendLines
and written one at a time as checksum-protected frames:

	N<line number> <payload>*<checksum>\n

Only one frame is in flight. The device acknowledges it with "ok", which
releases the next line, or asks for it again with "resend <N>" (also "rs <N>"
or "Resend: N"), in which case the same frame is written again with the same
line number. Nothing is sent before the device announces itself with a line
beginning with "start" or "Grbl ".

# Usage

	cfg, err := sender.NewConfig(sender.WithLogger(l))
	if err != nil {
	    return err
	}

	s, err := sender.New(ctx, cfg)
	if err != nil {
	    return err
	}

	if err := s.Connect("/dev/ttyUSB0", 250000); err != nil {
	    return err
	}
	defer s.Disconnect()

	if err := s.WaitConnected(ctx); err != nil {
	    return err
	}

	s.SendLines([]string{"G28", "G1 X10 Y10 F3000 ; move"})
	err = s.WaitQueueEmpty(ctx)

# Errors

Read and write failures of the port, and resend requests without a line
number, are fatal: the port is closed and ErrorStatus reports true until the
next Connect. The sender stays open until Disconnect, which then returns an
error wrapping ErrCloseFailed. A resend request for a line other than the last
one sent is not fatal; it is logged and reported to the diagnostic handlers
registered with AddDiagnosticHandler. A handler that wants to give up on such
a connection may call Disconnect itself.

Canceling the context given to New is fatal in the same way as a read failure.
*/
package sender
