// Package frame implements the line framing used to stream G-code to
// Grbl/Marlin-class firmware over a serial link.
//
// Each command line is sent as a single frame:
//
//	N<seq> <payload>*<checksum>\n
//
// where <seq> is the sender's running line number, <payload> is the command with
// any ';' comment removed and surrounding whitespace trimmed, and <checksum> is the
// XOR of every payload byte rendered in decimal.
//
// The firmware acknowledges frames with plain text lines ("ok", "resend N") that
// are interpreted by the sender package; this package only deals with the outbound
// frame format. [Parse] decodes a frame on the device side and is used by the
// simulated firmware in tests.
package frame
