package pdu

import "testing"

func TestHeaderRoundTrip(t *testing.T) {
	h := NewHeader(SENDFRAGMENT, 42, 500, 0)
	buf := make([]byte, HeaderSize)

	n, err := h.Encode(buf)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if n != HeaderSize {
		t.Fatalf("Encode returned %d, want %d", n, HeaderSize)
	}

	got, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != h {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestEncodeRejectsUndersizedBuffer(t *testing.T) {
	h := NewHeader(SND, 1, 10, 0)
	buf := make([]byte, HeaderSize-1)
	if _, err := h.Encode(buf); err != ErrBufferUndersized {
		t.Fatalf("Encode on short buffer: got %v, want ErrBufferUndersized", err)
	}
}

func TestDecodeRejectsShortDatagram(t *testing.T) {
	buf := make([]byte, 4)
	if _, err := Decode(buf); err != ErrBadDatagram {
		t.Fatalf("Decode on short buffer: got %v, want ErrBadDatagram", err)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		mtype MsgType
		want  Kind
	}{
		{INI, KindControl},
		{CONNECT, KindControl},
		{CLOSE, KindControl},
		{SND, KindData},
		{ACK, KindControl},
		{SNDACK, KindCompositeAck},
		{CNTACK, KindCompositeAck},
		{CLOSEACK, KindCompositeAck},
		{SENDFRAGMENT, KindFragment},
		{SENDFRAGMENTACK, KindCompositeAck},
		{ERROR, KindError},
	}
	for _, c := range cases {
		if got := Classify(c.mtype); got != c.want {
			t.Errorf("Classify(%s) = %v, want %v", c.mtype, got, c.want)
		}
	}
}

func TestIsFragment(t *testing.T) {
	if !SENDFRAGMENT.IsFragment() {
		t.Fatal("SENDFRAGMENT should report IsFragment")
	}
	if !SENDFRAGMENTACK.IsFragment() {
		t.Fatal("SENDFRAGMENTACK should report IsFragment")
	}
	if SND.IsFragment() {
		t.Fatal("SND should not report IsFragment")
	}
}

func TestMsgTypeString(t *testing.T) {
	if SNDACK.String() != "SNDACK" {
		t.Errorf("SNDACK.String() = %q", SNDACK.String())
	}
	if MsgType(999).String() != "UNKNOWN" {
		t.Errorf("unknown mtype.String() = %q", MsgType(999).String())
	}
}

func TestNextSeq(t *testing.T) {
	if got := NextSeq(10, 0); got != 11 {
		t.Errorf("NextSeq control frame: got %d, want 11", got)
	}
	if got := NextSeq(10, 500); got != 510 {
		t.Errorf("NextSeq data frame: got %d, want 510", got)
	}
}

func TestNextSeqWraps(t *testing.T) {
	var max uint32 = 1<<32 - 1
	if got := NextSeq(max, 0); got != 0 {
		t.Errorf("NextSeq should wrap modulo 2^32: got %d, want 0", got)
	}
}
