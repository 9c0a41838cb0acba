// Package sender implements the client side of a file transfer: connect,
// chunk the file into framed data PDUs, and disconnect.
package sender

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"udpftp/conn"
	"udpftp/pdu"
)

// outerReadSize is how much of the file SendFile reads per iteration
// before framing it, matching the original client's 500-byte fread chunk.
// It deliberately exceeds pdu.MaxBuffSz-pdu.FTPHeaderSize (the data that
// fits alongside a header in one datagram), so a typical read spans two
// physical frames: the first goes out tagged SENDFRAGMENT, the remainder
// as a plain frame.
const outerReadSize = 500

// Options configures retry behavior for dropped acks.
type Options struct {
	// MaxRetries bounds how many times a single datagram is resent after
	// its ack does not arrive within AckTimeout.
	MaxRetries int
	// AckTimeout is how long SendFile waits for an ack before treating it
	// as dropped and retrying.
	AckTimeout time.Duration
	// RetryBaseDelay is the initial backoff between retries; it doubles
	// after each attempt.
	RetryBaseDelay time.Duration
}

// DefaultOptions matches the values cmd/ftpsend ends up with when its
// retry flags are left at their defaults.
func DefaultOptions() Options {
	return Options{
		MaxRetries:     3,
		AckTimeout:     2 * time.Second,
		RetryBaseDelay: 200 * time.Millisecond,
	}
}

// Sender drives one file transfer over an already-bound endpoint.
type Sender struct {
	ep   *conn.Endpoint
	opts Options
	log  *slog.Logger
}

func New(ep *conn.Endpoint, opts Options, log *slog.Logger) *Sender {
	return &Sender{ep: ep, opts: opts, log: log}
}

// SendFile connects, streams path in outerReadSize pieces, and
// disconnects. Every physical datagram carries its own FTP header
// (StatusNew until the first byte goes out, StatusAppend for good
// thereafter, so the receiver truncates once and appends for the rest of
// the transfer); remoteName is the filename advertised to the receiver,
// and need not match path's basename.
func (s *Sender) SendFile(path, remoteName string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("sender: open %s: %w", path, err)
	}
	defer f.Close()

	if err := s.connectWithRetry(); err != nil {
		return fmt.Errorf("sender: connect: %w", err)
	}

	status := pdu.StatusNew
	buf := make([]byte, outerReadSize)
	sent := 0
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			if err := s.sendOuterChunk(remoteName, buf[:n], &status); err != nil {
				return fmt.Errorf("sender: aborting after %d bytes: %w", sent, err)
			}
			sent += n
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("sender: reading %s: %w", path, readErr)
		}
	}

	if err := s.disconnectWithRetry(); err != nil {
		return fmt.Errorf("sender: disconnect: %w", err)
	}
	s.log.Info("transfer complete", "file", path, "bytes", sent)
	return nil
}

// sendOuterChunk drives data out as one or more physical datagrams,
// mirroring the original client's inner send loop: it re-prepends a fresh
// FTP header to whatever of data hasn't gone out yet and resends, letting
// SendDgramTimeout's own MaxBuffSz clamp decide how much of each attempt
// actually fits (tagging SENDFRAGMENT when it had to truncate), until
// every byte of data has been carried by some datagram. status is flipped
// to StatusAppend as soon as a datagram has been acked, and stays there for
// the rest of the transfer.
func (s *Sender) sendOuterChunk(remoteName string, data []byte, status *pdu.Status) error {
	remaining := data
	for len(remaining) > 0 {
		payload := make([]byte, pdu.FTPHeaderSize+len(remaining))
		hdr := pdu.FTPHeader{FileName: remoteName, Status: *status}
		if _, err := pdu.EncodeFTPHeader(hdr, payload); err != nil {
			return err
		}
		copy(payload[pdu.FTPHeaderSize:], remaining)

		var n int
		if err := s.withRetry(func() error {
			sent, err := s.ep.SendDgramTimeout(payload, s.opts.AckTimeout)
			n = sent
			return err
		}); err != nil {
			return err
		}

		dataSent := n - pdu.FTPHeaderSize
		if dataSent <= 0 {
			return fmt.Errorf("sender: ack accepted %d bytes, too few to cover the FTP header", n)
		}
		remaining = remaining[dataSent:]
		*status = pdu.StatusAppend
	}
	return nil
}

func (s *Sender) connectWithRetry() error {
	return s.withRetry(s.ep.Connect)
}

func (s *Sender) disconnectWithRetry() error {
	err := s.withRetry(func() error {
		err := s.ep.Disconnect()
		if errors.Is(err, pdu.ErrConnectionClosed) {
			return nil
		}
		return err
	})
	return err
}

// withRetry runs op, retrying with exponential backoff up to
// opts.MaxRetries times, per the bounded-retry resolution for dropped
// acks.
func (s *Sender) withRetry(op func() error) error {
	delay := s.opts.RetryBaseDelay
	var lastErr error
	for attempt := 0; attempt <= s.opts.MaxRetries; attempt++ {
		if err := op(); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if attempt < s.opts.MaxRetries {
			s.log.Warn("retrying after dropped or rejected ack", "attempt", attempt+1, "err", lastErr)
			time.Sleep(delay)
			delay *= 2
		}
	}
	return fmt.Errorf("exceeded %d retries: %w", s.opts.MaxRetries, lastErr)
}
