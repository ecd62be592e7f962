package wayland

import (
	"errors"
	"testing"
)

func TestEncoder_StringPaddingAndHeader(t *testing.T) {
	e := NewEncoder(7, 3)
	e.PutString("abc") // 4 bytes with NUL, no padding
	e.PutString("abcd")
	e.PutUint(42)
	msg := e.Bytes()

	// header + (4+4) + (4+8) + 4
	if len(msg) != 8+8+12+4 {
		t.Fatalf("message length = %d, want %d", len(msg), 8+8+12+4)
	}

	h, ok := ParseHeader(msg)
	if !ok {
		t.Fatal("ParseHeader failed")
	}
	if h.Sender != 7 || h.Opcode != 3 || h.Size != len(msg) {
		t.Fatalf("header = %+v", h)
	}

	d := NewDecoder(msg[headerSize:])
	for _, want := range []string{"abc", "abcd"} {
		got, err := d.ReadString()
		if err != nil {
			t.Fatalf("ReadString: %v", err)
		}
		if got != want {
			t.Fatalf("ReadString = %q, want %q", got, want)
		}
	}
	v, err := d.ReadUint()
	if err != nil || v != 42 {
		t.Fatalf("ReadUint = %d, %v", v, err)
	}
}

func TestDecoder_ArrayOfStates(t *testing.T) {
	e := NewEncoder(1, 0)
	e.PutArray(Uint32Array(uint32(StateActivated), uint32(StateMaximized)))
	msg := e.Bytes()

	raw, err := NewDecoder(msg[headerSize:]).ReadArray()
	if err != nil {
		t.Fatalf("ReadArray: %v", err)
	}
	words := Uint32s(raw)
	if len(words) != 2 || words[0] != uint32(StateActivated) || words[1] != uint32(StateMaximized) {
		t.Fatalf("words = %v", words)
	}
}

func TestDecoder_EmptyArrayAndNullString(t *testing.T) {
	e := NewEncoder(1, 0)
	e.PutArray(nil)
	e.PutUint(0) // null string
	msg := e.Bytes()

	d := NewDecoder(msg[headerSize:])
	raw, err := d.ReadArray()
	if err != nil || len(raw) != 0 {
		t.Fatalf("ReadArray = %v, %v", raw, err)
	}
	s, err := d.ReadString()
	if err != nil || s != "" {
		t.Fatalf("ReadString = %q, %v", s, err)
	}
}

func TestDecoder_TruncatedMessages(t *testing.T) {
	e := NewEncoder(1, 0)
	e.PutString("truncated title")
	body := e.Bytes()[headerSize:]

	cases := map[string][]byte{
		"missing length": body[:2],
		"missing bytes":  body[:8],
	}
	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewDecoder(b).ReadString()
			if !errors.Is(err, ErrShortMessage) {
				t.Fatalf("err = %v, want ErrShortMessage", err)
			}
		})
	}

	if _, err := NewDecoder(nil).ReadUint(); !errors.Is(err, ErrShortMessage) {
		t.Fatalf("ReadUint on empty body: %v", err)
	}
}

func TestDecoder_RejectsUnterminatedString(t *testing.T) {
	body := append(Uint32Array(4), 'a', 'b', 'c', 'd')
	if _, err := NewDecoder(body).ReadString(); err == nil {
		t.Fatal("expected error for string without NUL")
	}
}

func TestParseHeader_Short(t *testing.T) {
	if _, ok := ParseHeader(make([]byte, 7)); ok {
		t.Fatal("ParseHeader accepted a 7 byte buffer")
	}
}
