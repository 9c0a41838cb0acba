package conn

import (
	"net"
	"testing"
	"time"

	"udpftp/pdu"
)

func newLoopbackPair(t *testing.T) (client, server *Endpoint) {
	t.Helper()
	server, err := Listen("127.0.0.1:0", Options{})
	if err != nil {
		t.Fatalf("Listen server: %v", err)
	}
	client, err = Listen("127.0.0.1:0", Options{})
	if err != nil {
		t.Fatalf("Listen client: %v", err)
	}
	client.SetOutAddr(server.LocalAddr().(*net.UDPAddr))
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})
	return client, server
}

func TestConnectHandshake(t *testing.T) {
	client, server := newLoopbackPair(t)

	done := make(chan error, 1)
	go func() { done <- server.Listen() }()

	if err := client.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("server Listen: %v", err)
	}
	if !client.IsConnected() || !server.IsConnected() {
		t.Fatal("expected both endpoints connected")
	}
}

func TestSendDgramRecvDgramRoundTrip(t *testing.T) {
	client, server := newLoopbackPair(t)

	go func() { _ = server.Listen() }()
	if err := client.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	payload := []byte("hello world")
	sendDone := make(chan error, 1)
	go func() {
		_, err := client.SendDgram(payload)
		sendDone <- err
	}()

	buf := make([]byte, pdu.MaxBuffSz)
	n, h, err := server.RecvDgram(buf)
	if err != nil {
		t.Fatalf("RecvDgram: %v", err)
	}
	if h.Mtype != pdu.SND {
		t.Errorf("mtype = %s, want SND", h.Mtype)
	}
	if string(buf[:n]) != string(payload) {
		t.Errorf("payload = %q, want %q", buf[:n], payload)
	}
	if err := <-sendDone; err != nil {
		t.Fatalf("SendDgram: %v", err)
	}
}

func TestRecvDgramClose(t *testing.T) {
	client, server := newLoopbackPair(t)
	go func() { _ = server.Listen() }()
	if err := client.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	closeDone := make(chan error, 1)
	go func() { closeDone <- client.Disconnect() }()

	buf := make([]byte, pdu.MaxBuffSz)
	_, h, err := server.RecvDgram(buf)
	if err != pdu.ErrConnectionClosed {
		t.Fatalf("RecvDgram on CLOSE: got %v, want ErrConnectionClosed", err)
	}
	if h.Mtype != pdu.CLOSE {
		t.Errorf("mtype = %s, want CLOSE", h.Mtype)
	}
	select {
	case err := <-closeDone:
		if err != pdu.ErrConnectionClosed {
			t.Fatalf("Disconnect: got %v, want ErrConnectionClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Disconnect")
	}
}

func TestListenAppliesSocketOptions(t *testing.T) {
	e, err := Listen("127.0.0.1:0", Options{
		RecvBufferBytes: 64 * 1024,
		SendBufferBytes: 64 * 1024,
		TOS:             0x10,
	})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer e.Close()

	got, err := e.TOS()
	if err != nil {
		t.Fatalf("TOS: %v", err)
	}
	if got != 0x10 {
		t.Errorf("TOS = %#x, want %#x", got, 0x10)
	}
}

func TestAdvanceSeqForPeer(t *testing.T) {
	e, err := Listen("127.0.0.1:0", Options{})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer e.Close()

	if got := e.AdvanceSeqForPeer("peer", 0); got != 1 {
		t.Errorf("control-frame advance: got %d, want 1", got)
	}
	if got := e.AdvanceSeqForPeer("peer", 500); got != 501 {
		t.Errorf("data-frame advance: got %d, want 501", got)
	}
	if got := e.SeqForPeer("peer"); got != 501 {
		t.Errorf("SeqForPeer: got %d, want 501", got)
	}
	e.DeleteSeqForPeer("peer")
	if got := e.SeqForPeer("peer"); got != 0 {
		t.Errorf("SeqForPeer after delete: got %d, want 0", got)
	}
}
