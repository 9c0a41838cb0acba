package sender

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"udpftp/conn"
	"udpftp/pdu"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// frame is one acked datagram as the fake receiver saw it: its payload
// (FTP header + data) and the wire mtype the sender tagged it with.
type frame struct {
	payload []byte
	mtype   pdu.MsgType
}

// fakeReceiver drives the server side of the handshake and collects every
// frame it acks, without going through the dispatch package.
func fakeReceiver(t *testing.T, ep *conn.Endpoint) <-chan frame {
	t.Helper()
	out := make(chan frame, 64)
	go func() {
		defer close(out)
		if err := ep.Listen(); err != nil {
			t.Errorf("receiver Listen: %v", err)
			return
		}
		buf := make([]byte, pdu.MaxBuffSz)
		for {
			n, h, err := ep.RecvDgram(buf)
			if errors.Is(err, pdu.ErrConnectionClosed) {
				return
			}
			if err != nil {
				t.Errorf("receiver RecvDgram: %v", err)
				return
			}
			out <- frame{payload: append([]byte(nil), buf[:n]...), mtype: h.Mtype}
		}
	}()
	return out
}

func TestSendFileNewThenAppendFraming(t *testing.T) {
	serverEP, err := conn.Listen("127.0.0.1:0", conn.Options{})
	if err != nil {
		t.Fatalf("conn.Listen server: %v", err)
	}
	defer serverEP.Close()

	clientEP, err := conn.Listen("127.0.0.1:0", conn.Options{})
	if err != nil {
		t.Fatalf("conn.Listen client: %v", err)
	}
	defer clientEP.Close()
	clientEP.SetOutAddr(serverEP.LocalAddr().(*net.UDPAddr))

	frames := fakeReceiver(t, serverEP)

	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.bin")
	content := bytes.Repeat([]byte("xyz-"), outerReadSize) // several outer reads, each wider than one datagram's data cap
	if err := os.WriteFile(srcPath, content, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s := New(clientEP, Options{MaxRetries: 2, AckTimeout: time.Second, RetryBaseDelay: 10 * time.Millisecond}, discardLogger())
	if err := s.SendFile(srcPath, "dest.bin"); err != nil {
		t.Fatalf("SendFile: %v", err)
	}

	var reassembled []byte
	first := true
	sawFragment := false
	for fr := range frames {
		hdr, err := pdu.DecodeFTPHeader(fr.payload)
		if err != nil {
			t.Fatalf("DecodeFTPHeader: %v", err)
		}
		if hdr.FileName != "dest.bin" {
			t.Errorf("FileName = %q, want %q", hdr.FileName, "dest.bin")
		}
		wantStatus := pdu.StatusAppend
		if first {
			wantStatus = pdu.StatusNew
			first = false
		}
		if hdr.Status != wantStatus {
			t.Errorf("Status = %v, want %v", hdr.Status, wantStatus)
		}
		if fr.mtype == pdu.SENDFRAGMENT {
			sawFragment = true
		}
		reassembled = append(reassembled, fr.payload[pdu.FTPHeaderSize:]...)
	}

	if !sawFragment {
		t.Error("expected at least one SENDFRAGMENT-tagged datagram for a chunk wider than one datagram's data cap")
	}
	if !bytes.Equal(reassembled, content) {
		t.Fatalf("reassembled %d bytes, want %d bytes matching source", len(reassembled), len(content))
	}
}

func TestSendFileMissingSource(t *testing.T) {
	ep, err := conn.Listen("127.0.0.1:0", conn.Options{})
	if err != nil {
		t.Fatalf("conn.Listen: %v", err)
	}
	defer ep.Close()

	s := New(ep, DefaultOptions(), discardLogger())
	if err := s.SendFile("/nonexistent/path/does-not-exist", "x"); err == nil {
		t.Fatal("expected an error opening a nonexistent source file")
	}
}
