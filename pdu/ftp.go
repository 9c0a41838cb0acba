package pdu

import (
	"bytes"
	"encoding/binary"
)

// FTPFileNameSz is the fixed width of the null-terminated filename field
// in the application-level FTP header.
const FTPFileNameSz = 100

// FTPHeaderSize is the exact on-wire size of the FTP header: a 100-byte
// filename field followed by three little-endian 32-bit fields.
const FTPHeaderSize = FTPFileNameSz + 4 + 4 + 4

// Status selects whether the receiver truncates or appends to the
// destination file.
type Status int32

const (
	StatusNew    Status = 0
	StatusAppend Status = 1
)

// FTPError is the application-level error code carried in the FTP header,
// distinct from the transport-level err_num in the PDU header.
type FTPError int32

const (
	AccessDenied FTPError = -2
	FileNotFound FTPError = -1
	NoFTPError   FTPError = 0
	UnknownError FTPError = 99
)

// FTPHeader is the application header that precedes file payload bytes in
// every data-carrying frame.
type FTPHeader struct {
	FileName string
	ProtoVer uint32
	Status   Status
	Err      FTPError
}

// EncodeFTPHeader writes h into the front of buf in the fixed layout. The
// filename is truncated to FTPFileNameSz-1 bytes and null-terminated.
func EncodeFTPHeader(h FTPHeader, buf []byte) (int, error) {
	if len(buf) < FTPHeaderSize {
		return 0, ErrBufferUndersized
	}
	for i := range buf[:FTPFileNameSz] {
		buf[i] = 0
	}
	name := h.FileName
	if len(name) > FTPFileNameSz-1 {
		name = name[:FTPFileNameSz-1]
	}
	copy(buf[:FTPFileNameSz], name)

	protoVer := h.ProtoVer
	if protoVer == 0 {
		protoVer = ProtoVersion
	}
	binary.LittleEndian.PutUint32(buf[FTPFileNameSz:FTPFileNameSz+4], protoVer)
	binary.LittleEndian.PutUint32(buf[FTPFileNameSz+4:FTPFileNameSz+8], uint32(h.Status))
	binary.LittleEndian.PutUint32(buf[FTPFileNameSz+8:FTPFileNameSz+12], uint32(h.Err))
	return FTPHeaderSize, nil
}

// DecodeFTPHeader reads an FTPHeader from the leading FTPHeaderSize bytes
// of buf. It rejects buffers shorter than the header.
func DecodeFTPHeader(buf []byte) (FTPHeader, error) {
	if len(buf) < FTPHeaderSize {
		return FTPHeader{}, ErrBadDatagram
	}
	nameBytes := buf[:FTPFileNameSz]
	if i := bytes.IndexByte(nameBytes, 0); i >= 0 {
		nameBytes = nameBytes[:i]
	}
	return FTPHeader{
		FileName: string(nameBytes),
		ProtoVer: binary.LittleEndian.Uint32(buf[FTPFileNameSz : FTPFileNameSz+4]),
		Status:   Status(binary.LittleEndian.Uint32(buf[FTPFileNameSz+4 : FTPFileNameSz+8])),
		Err:      FTPError(binary.LittleEndian.Uint32(buf[FTPFileNameSz+8 : FTPFileNameSz+12])),
	}, nil
}
