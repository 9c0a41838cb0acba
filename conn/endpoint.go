// Package conn implements the connection endpoint: a bound datagram
// socket, raw send/recv, and the per-peer sequence bookkeeping the
// protocol's handshakes and dispatch layer build on.
package conn

import (
	"fmt"
	"net"
	"sync"

	"golang.org/x/net/ipv4"

	"udpftp/pdu"
)

// Options tunes the underlying socket. All fields are optional; zero
// values leave the OS default in place.
type Options struct {
	// RecvBufferBytes/SendBufferBytes set the socket's receive/send
	// buffer size, mirroring the socket tuning temaune502-LTD2 performs
	// on its TCP sockets before a bulk transfer.
	RecvBufferBytes int
	SendBufferBytes int
	// TOS sets the IPv4 type-of-service byte on the socket via
	// golang.org/x/net/ipv4, so it applies to every datagram the endpoint
	// sends (control and payload frames alike). 0 leaves the OS default.
	TOS int
}

// Endpoint owns a bound UDP socket and the bookkeeping the protocol needs
// on top of it: an outbound peer address that tracks "whoever we last
// heard from", a local sequence counter for single-peer (sender/listen)
// use, and a per-peer sequence map for the dispatcher's multi-peer use.
type Endpoint struct {
	conn  *net.UDPConn
	pconn *ipv4.PacketConn

	outAddr *net.UDPAddr
	outInit bool

	seq       uint32
	connected bool

	mu      sync.Mutex
	seqNums map[string]uint32
}

// Listen binds a UDP socket at laddr (use ":0" for an ephemeral sender
// port, or "<ip>:<port>" to bind a receiver).
func Listen(laddr string, opts Options) (*Endpoint, error) {
	addr, err := net.ResolveUDPAddr("udp4", laddr)
	if err != nil {
		return nil, fmt.Errorf("conn: resolve %q: %w", laddr, err)
	}
	c, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("conn: listen %q: %w", laddr, err)
	}
	if opts.RecvBufferBytes > 0 {
		_ = c.SetReadBuffer(opts.RecvBufferBytes)
	}
	if opts.SendBufferBytes > 0 {
		_ = c.SetWriteBuffer(opts.SendBufferBytes)
	}
	pc := ipv4.NewPacketConn(c)
	if opts.TOS != 0 {
		_ = pc.SetTOS(opts.TOS)
	}
	return &Endpoint{
		conn:    c,
		pconn:   pc,
		seqNums: make(map[string]uint32),
	}, nil
}

// Close releases the underlying socket.
func (e *Endpoint) Close() error {
	return e.conn.Close()
}

// LocalAddr is the endpoint's bound local address.
func (e *Endpoint) LocalAddr() net.Addr {
	return e.conn.LocalAddr()
}

// SetOutAddr fixes the outbound target explicitly, for a sender that
// already knows the receiver's address from configuration rather than
// from a prior RecvRaw.
func (e *Endpoint) SetOutAddr(addr *net.UDPAddr) {
	e.outAddr = addr
	e.outInit = true
}

// OutAddr is the current outbound target: the peer the next SendRaw will
// reach, and, on the receiver, the peer the most recent RecvRaw came from.
func (e *Endpoint) OutAddr() *net.UDPAddr {
	return e.outAddr
}

// PeerKey is the textual dispatch-map key for the current outbound
// target: the peer's dotted-quad address and port. The port matters:
// two senders on the same host are distinct peers.
func (e *Endpoint) PeerKey() string {
	if e.outAddr == nil {
		return ""
	}
	return e.outAddr.String()
}

func (e *Endpoint) IsConnected() bool { return e.connected }

// TOS reports the IPv4 type-of-service byte currently set on outgoing
// datagrams, as configured via Options.TOS.
func (e *Endpoint) TOS() (int, error) {
	return e.pconn.TOS()
}

// SendRaw writes buf as exactly one datagram to the current outbound
// target. It does not fragment at the application layer.
func (e *Endpoint) SendRaw(buf []byte) (int, error) {
	if !e.outInit {
		return 0, fmt.Errorf("conn: sendRaw: no outbound target set")
	}
	return e.conn.WriteToUDP(buf, e.outAddr)
}

// RecvRaw reads one datagram, blocking, and records its source as the new
// outbound target so a subsequent SendRaw replies to this peer.
func (e *Endpoint) RecvRaw(buf []byte) (int, error) {
	n, addr, err := e.conn.ReadFromUDP(buf)
	if err != nil {
		return 0, err
	}
	e.outAddr = addr
	e.outInit = true
	return n, nil
}

// SeqForPeer returns the next expected sequence number for peerKey.
func (e *Endpoint) SeqForPeer(peerKey string) uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seqNums[peerKey]
}

// SetSeqForPeer sets the next expected sequence number for peerKey.
func (e *Endpoint) SetSeqForPeer(peerKey string, v uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seqNums[peerKey] = v
}

// AdvanceSeqForPeer applies the invariant in spec §3 (+1 for a zero-sized
// control frame, += dgram_sz otherwise) and returns the new value.
func (e *Endpoint) AdvanceSeqForPeer(peerKey string, dgramSz int32) uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	next := pdu.NextSeq(e.seqNums[peerKey], dgramSz)
	e.seqNums[peerKey] = next
	return next
}

// DeleteSeqForPeer drops the sequence entry for a peer whose stream ended.
func (e *Endpoint) DeleteSeqForPeer(peerKey string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.seqNums, peerKey)
}
