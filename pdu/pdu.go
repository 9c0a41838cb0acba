// Package pdu implements the wire frame codec: the fixed-size header
// prepended to every datagram, and the application-level FTP header that
// rides in the payload of data-carrying frames.
package pdu

import "encoding/binary"

// ProtoVersion is the only protocol version this implementation speaks.
const ProtoVersion uint32 = 1

// HeaderSize is the exact on-wire size of a PDU header: five little-endian
// 32-bit fields, packed, with no padding.
const HeaderSize = 20

// MaxBuffSz is the largest payload a single non-fragment datagram carries.
const MaxBuffSz = 512

// MaxDgramSz is the largest datagram (header + payload) either side will
// ever send or must be prepared to receive.
const MaxDgramSz = MaxBuffSz + HeaderSize

// Header is the transport frame prepended to every datagram.
type Header struct {
	ProtoVer uint32
	Mtype    MsgType
	Seqnum   uint32
	DgramSz  int32
	ErrNum   int32
}

// Encode writes h into the front of buf in the fixed little-endian layout.
// buf must be at least HeaderSize bytes; Encode never allocates.
func (h Header) Encode(buf []byte) (int, error) {
	if len(buf) < HeaderSize {
		return 0, ErrBufferUndersized
	}
	binary.LittleEndian.PutUint32(buf[0:4], h.ProtoVer)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(h.Mtype))
	binary.LittleEndian.PutUint32(buf[8:12], h.Seqnum)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(h.DgramSz))
	binary.LittleEndian.PutUint32(buf[16:20], uint32(h.ErrNum))
	return HeaderSize, nil
}

// Decode reads a Header from the leading HeaderSize bytes of buf. It
// rejects buffers shorter than the header with ErrBadDatagram.
func Decode(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, ErrBadDatagram
	}
	return Header{
		ProtoVer: binary.LittleEndian.Uint32(buf[0:4]),
		Mtype:    MsgType(binary.LittleEndian.Uint32(buf[4:8])),
		Seqnum:   binary.LittleEndian.Uint32(buf[8:12]),
		DgramSz:  int32(binary.LittleEndian.Uint32(buf[12:16])),
		ErrNum:   int32(binary.LittleEndian.Uint32(buf[16:20])),
	}, nil
}

// NewHeader builds a header with the current protocol version filled in.
func NewHeader(mtype MsgType, seq uint32, dgramSz, errNum int32) Header {
	return Header{
		ProtoVer: ProtoVersion,
		Mtype:    mtype,
		Seqnum:   seq,
		DgramSz:  dgramSz,
		ErrNum:   errNum,
	}
}
