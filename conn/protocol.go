package conn

import (
	"fmt"
	"time"

	"udpftp/pdu"
)

// SendDgram sends at most pdu.MaxBuffSz bytes of payload as one PDU,
// using FRAGMENT framing when payload exceeds that, waits for the
// matching ack, and advances the local sequence counter. It returns the
// number of payload bytes actually sent.
func (e *Endpoint) SendDgram(payload []byte) (int, error) {
	return e.SendDgramTimeout(payload, 0)
}

// SendDgramTimeout is SendDgram with a bound on how long it waits for the
// ack. A zero timeout waits indefinitely. On timeout it returns
// os.ErrDeadlineExceeded (wrapped), letting a caller distinguish a
// dropped ack from a protocol error and retry.
func (e *Endpoint) SendDgramTimeout(payload []byte, timeout time.Duration) (int, error) {
	n := len(payload)
	if n > pdu.MaxBuffSz {
		n = pdu.MaxBuffSz
	}
	mtype := pdu.SND
	if n < len(payload) {
		mtype = pdu.SENDFRAGMENT
	}

	buf := make([]byte, pdu.HeaderSize+n)
	h := pdu.NewHeader(mtype, e.seq, int32(n), pdu.NoError)
	if _, err := h.Encode(buf); err != nil {
		return 0, err
	}
	copy(buf[pdu.HeaderSize:], payload[:n])

	if _, err := e.SendRaw(buf); err != nil {
		return 0, fmt.Errorf("conn: sendDgram: %w", err)
	}

	if timeout > 0 {
		_ = e.conn.SetReadDeadline(time.Now().Add(timeout))
		defer e.conn.SetReadDeadline(time.Time{})
	}

	ackBuf := make([]byte, pdu.HeaderSize)
	if _, err := e.RecvRaw(ackBuf); err != nil {
		return 0, fmt.Errorf("conn: sendDgram: waiting for ack: %w", err)
	}
	ack, err := pdu.Decode(ackBuf)
	if err != nil {
		return 0, err
	}
	want := pdu.SNDACK
	if mtype == pdu.SENDFRAGMENT {
		want = pdu.SENDFRAGMENTACK
	}
	if ack.Mtype != want {
		return 0, fmt.Errorf("%w: expected %s, got %s", pdu.ErrProtocol, want, ack.Mtype)
	}

	e.seq = pdu.NextSeq(e.seq, int32(n))
	return n, nil
}

// RecvDgram reads one PDU, replies with the appropriate ack or error
// response, advances the local sequence counter, and returns the payload
// bytes copied into buf along with the decoded header so the caller can
// inspect mtype (e.g. to detect CLOSE or a fragment continuation).
func (e *Endpoint) RecvDgram(buf []byte) (int, pdu.Header, error) {
	scratch := make([]byte, pdu.MaxDgramSz)
	n, err := e.RecvRaw(scratch)
	if err != nil {
		return 0, pdu.Header{}, err
	}

	in, decErr := pdu.Decode(scratch[:min(n, len(scratch))])
	if decErr != nil {
		e.seq = pdu.NextSeq(e.seq, 0)
		e.sendAck(pdu.ERROR, pdu.ErrorBadDgram, 0)
		return 0, pdu.Header{}, pdu.ErrBadDatagram
	}

	respType, errNum := pdu.Validate(in, n, len(buf))
	if errNum != pdu.NoError {
		e.seq = pdu.NextSeq(e.seq, 0)
		e.sendAck(respType, errNum, e.seq)
		return 0, in, &pdu.WireError{Code: errNum, Err: pdu.ErrBufferUndersized}
	}

	if in.Mtype == pdu.CLOSE {
		e.seq = pdu.NextSeq(e.seq, 0)
		e.sendAck(pdu.CLOSEACK, pdu.NoError, e.seq)
		return 0, in, pdu.ErrConnectionClosed
	}

	if respType == 0 {
		return 0, in, fmt.Errorf("%w: unexpected mtype %s", pdu.ErrProtocol, in.Mtype)
	}

	payload := scratch[pdu.HeaderSize:n]
	copy(buf, payload)
	e.seq = pdu.NextSeq(e.seq, int32(len(payload)))
	e.sendAck(respType, pdu.NoError, e.seq)
	return len(payload), in, nil
}

func (e *Endpoint) sendAck(mtype pdu.MsgType, errNum int32, seq uint32) {
	buf := make([]byte, pdu.HeaderSize)
	h := pdu.NewHeader(mtype, seq, 0, errNum)
	if _, err := h.Encode(buf); err != nil {
		return
	}
	_, _ = e.SendRaw(buf)
}

// Connect performs the client-side handshake: send CONNECT, wait for
// CNTACK, and adopt the sequence number the receiver assigns.
func (e *Endpoint) Connect() error {
	buf := make([]byte, pdu.HeaderSize)
	h := pdu.NewHeader(pdu.CONNECT, e.seq, 0, pdu.NoError)
	if _, err := h.Encode(buf); err != nil {
		return err
	}
	if _, err := e.SendRaw(buf); err != nil {
		return fmt.Errorf("conn: connect: %w", err)
	}

	respBuf := make([]byte, pdu.HeaderSize)
	if _, err := e.RecvRaw(respBuf); err != nil {
		return fmt.Errorf("conn: connect: waiting for ack: %w", err)
	}
	resp, err := pdu.Decode(respBuf)
	if err != nil {
		return err
	}
	if resp.Mtype != pdu.CNTACK {
		return fmt.Errorf("%w: expected CNTACK, got %s", pdu.ErrProtocol, resp.Mtype)
	}
	e.seq = resp.Seqnum
	e.connected = true
	return nil
}

// Listen performs the single-peer server-side handshake: wait for
// CONNECT, then reply with CNTACK carrying the sequence number the
// caller should expect next.
func (e *Endpoint) Listen() error {
	buf := make([]byte, pdu.HeaderSize)
	if _, err := e.RecvRaw(buf); err != nil {
		return fmt.Errorf("conn: listen: %w", err)
	}
	in, err := pdu.Decode(buf)
	if err != nil {
		return err
	}
	if in.Mtype != pdu.CONNECT {
		return fmt.Errorf("%w: expected CONNECT, got %s", pdu.ErrProtocol, in.Mtype)
	}
	e.seq = pdu.NextSeq(in.Seqnum, 0)

	ackBuf := make([]byte, pdu.HeaderSize)
	ack := pdu.NewHeader(pdu.CNTACK, e.seq, 0, pdu.NoError)
	if _, err := ack.Encode(ackBuf); err != nil {
		return err
	}
	if _, err := e.SendRaw(ackBuf); err != nil {
		return fmt.Errorf("conn: listen: %w", err)
	}
	e.connected = true
	return nil
}

// Disconnect performs the client-side teardown handshake: send CLOSE,
// wait for CLOSEACK, then close the socket.
func (e *Endpoint) Disconnect() error {
	buf := make([]byte, pdu.HeaderSize)
	h := pdu.NewHeader(pdu.CLOSE, e.seq, 0, pdu.NoError)
	if _, err := h.Encode(buf); err != nil {
		return err
	}
	if _, err := e.SendRaw(buf); err != nil {
		return fmt.Errorf("conn: disconnect: %w", err)
	}

	respBuf := make([]byte, pdu.HeaderSize)
	if _, err := e.RecvRaw(respBuf); err != nil {
		return fmt.Errorf("conn: disconnect: waiting for ack: %w", err)
	}
	resp, err := pdu.Decode(respBuf)
	if err != nil {
		return err
	}
	if resp.Mtype != pdu.CLOSEACK {
		return fmt.Errorf("%w: expected CLOSEACK, got %s", pdu.ErrProtocol, resp.Mtype)
	}
	e.connected = false
	return pdu.ErrConnectionClosed
}
