package writer

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"udpftp/pdu"
)

// channelCapacity is the bound server.cpp gives every FTPFileWriter's
// internal channel.
const channelCapacity = 20

// Task is the per-peer writer: one bounded channel of raw frame
// payloads (FTP header followed by a chunk of file data) and a loop that
// drains it, opening and closing the destination file once per message.
type Task struct {
	ch   *BufferedChan[[]byte]
	root string
	log  *slog.Logger
	done chan struct{}
	peer string
}

// NewTask creates a writer task that confines every file it writes under
// root (joined with the wire filename's base name, never the raw wire
// path) and logs under the given peer key.
func NewTask(root, peer string, log *slog.Logger) *Task {
	return &Task{
		ch:   NewBuffered[[]byte](channelCapacity),
		root: root,
		peer: peer,
		log:  log,
		done: make(chan struct{}),
	}
}

// PushToChannel enqueues a frame payload, blocking if the channel is
// full. It reports false if the task has already closed its channel.
func (t *Task) PushToChannel(payload []byte) bool {
	return t.ch.Send(payload)
}

// Close signals ServerLoop to exit once the channel drains.
func (t *Task) Close() {
	t.ch.Close()
}

// Done reports when ServerLoop has returned, whether from a closed
// channel or a fatal write error.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// ServerLoop drains the channel until it closes or a file write fails
// fatally. It is meant to be submitted to the executor as one task.
func (t *Task) ServerLoop() {
	defer close(t.done)
	for {
		msg, ok := t.ch.Receive()
		if !ok {
			return
		}
		if len(msg) < pdu.FTPHeaderSize {
			t.log.Warn("dropping malformed frame", "peer", t.peer, "size", len(msg))
			continue
		}
		hdr, err := pdu.DecodeFTPHeader(msg)
		if err != nil {
			t.log.Warn("dropping undecodable frame", "peer", t.peer, "err", err)
			continue
		}
		data := msg[pdu.FTPHeaderSize:]
		if err := t.writeChunk(hdr, data); err != nil {
			t.log.Error("fatal write error, terminating writer", "peer", t.peer, "file", hdr.FileName, "err", err)
			return
		}
	}
}

func (t *Task) writeChunk(hdr pdu.FTPHeader, data []byte) error {
	name := filepath.Base(hdr.FileName)
	if name == "" || name == "." || name == string(filepath.Separator) {
		return fmt.Errorf("writer: refusing to write unnamed file for peer %s", t.peer)
	}
	outPath := filepath.Join(t.root, name)

	flags := os.O_WRONLY | os.O_CREATE
	if hdr.Status == pdu.StatusAppend {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(outPath, flags, 0o644)
	if err != nil {
		return fmt.Errorf("writer: open %s: %w", outPath, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("writer: write %s: %w", outPath, err)
	}
	return nil
}
