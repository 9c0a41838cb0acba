package pdu

// Validate checks a just-received datagram against the header it decoded
// to, per the rules shared by Endpoint.RecvDgram (single-peer) and the
// dispatcher (multi-peer): reject undersized datagrams and oversized
// declared payloads. It returns the response mtype to send back and the
// err_num to carry on it.
func Validate(in Header, bytesIn int, destCap int) (respType MsgType, errNum int32) {
	if bytesIn < HeaderSize {
		return ERROR, ErrorBadDgram
	}
	if int(in.DgramSz) > destCap {
		return ERROR, BuffUndersized
	}
	if in.Mtype.IsFragment() {
		return SENDFRAGMENTACK, NoError
	}
	switch in.Mtype {
	case SND:
		return SNDACK, NoError
	case CLOSE:
		return CLOSEACK, NoError
	default:
		return 0, NoError // caller must special-case: unexpected mtype, no ack
	}
}

// NextSeq advances a sequence counter by the rule in spec §3: +1 for a
// zero-sized control frame, += dgram_sz for a data frame.
func NextSeq(seq uint32, dgramSz int32) uint32 {
	if dgramSz == 0 {
		return seq + 1
	}
	return seq + uint32(dgramSz)
}
