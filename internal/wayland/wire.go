package wayland

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ObjectID identifies a protocol object on one connection.
type ObjectID uint32

const (
	headerSize = 8

	// DisplayID is the fixed id of the wl_display singleton.
	DisplayID ObjectID = 1

	// Ids at or above serverIDBase are allocated by the compositor.
	serverIDBase ObjectID = 0xff000000

	maxMessageSize = 4096
)

var wireOrder = binary.NativeEndian

// ErrShortMessage is returned when a message body ends before all of its
// arguments have been read.
var ErrShortMessage = errors.New("wayland: short message")

// Encoder builds a single request message.
type Encoder struct {
	sender ObjectID
	opcode uint16
	buf    []byte
}

// NewEncoder starts a message from sender with the given opcode.
func NewEncoder(sender ObjectID, opcode uint16) *Encoder {
	return &Encoder{
		sender: sender,
		opcode: opcode,
		buf:    make([]byte, headerSize, 64),
	}
}

// PutUint appends a uint argument.
func (e *Encoder) PutUint(v uint32) {
	e.buf = wireOrder.AppendUint32(e.buf, v)
}

// PutInt appends an int argument.
func (e *Encoder) PutInt(v int32) {
	e.PutUint(uint32(v))
}

// PutObject appends an object argument; 0 is null.
func (e *Encoder) PutObject(id ObjectID) {
	e.PutUint(uint32(id))
}

// PutNewID appends a new_id argument of a known interface.
func (e *Encoder) PutNewID(id ObjectID) {
	e.PutUint(uint32(id))
}

// PutString encodes s with its terminating NUL, padded to 32 bits.
func (e *Encoder) PutString(s string) {
	e.PutUint(uint32(len(s) + 1))
	e.buf = append(e.buf, s...)
	e.buf = append(e.buf, 0)
	e.pad()
}

// PutArray appends a length-prefixed, padded array argument.
func (e *Encoder) PutArray(b []byte) {
	e.PutUint(uint32(len(b)))
	e.buf = append(e.buf, b...)
	e.pad()
}

func (e *Encoder) pad() {
	for len(e.buf)%4 != 0 {
		e.buf = append(e.buf, 0)
	}
}

// Bytes finalizes the header and returns the encoded message.
func (e *Encoder) Bytes() []byte {
	wireOrder.PutUint32(e.buf[0:4], uint32(e.sender))
	wireOrder.PutUint32(e.buf[4:8], uint32(len(e.buf))<<16|uint32(e.opcode))
	return e.buf
}

// Decoder reads the arguments of one message body.
type Decoder struct {
	b   []byte
	off int
}

// NewDecoder reads arguments from a message body (header excluded).
func NewDecoder(body []byte) *Decoder {
	return &Decoder{b: body}
}

// ReadUint reads a uint argument.
func (d *Decoder) ReadUint() (uint32, error) {
	if len(d.b)-d.off < 4 {
		return 0, ErrShortMessage
	}
	v := wireOrder.Uint32(d.b[d.off:])
	d.off += 4
	return v, nil
}

// ReadInt reads an int argument.
func (d *Decoder) ReadInt() (int32, error) {
	v, err := d.ReadUint()
	return int32(v), err
}

// ReadObject reads an object argument.
func (d *Decoder) ReadObject() (ObjectID, error) {
	v, err := d.ReadUint()
	return ObjectID(v), err
}

// ReadNewID reads a new_id argument of a known interface.
func (d *Decoder) ReadNewID() (ObjectID, error) {
	v, err := d.ReadUint()
	if err == nil && v == 0 {
		return 0, fmt.Errorf("wayland: new_id argument is null")
	}
	return ObjectID(v), err
}

// ReadString decodes a string argument. A null string decodes as "".
func (d *Decoder) ReadString() (string, error) {
	n, err := d.ReadUint()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	padded := int(pad4(n))
	if len(d.b)-d.off < padded {
		return "", ErrShortMessage
	}
	raw := d.b[d.off : d.off+int(n)]
	d.off += padded
	if raw[len(raw)-1] != 0 {
		return "", fmt.Errorf("wayland: string argument is not NUL terminated")
	}
	return string(raw[:len(raw)-1]), nil
}

// ReadArray reads an array argument into a fresh slice.
func (d *Decoder) ReadArray() ([]byte, error) {
	n, err := d.ReadUint()
	if err != nil {
		return nil, err
	}
	padded := int(pad4(n))
	if len(d.b)-d.off < padded {
		return nil, ErrShortMessage
	}
	out := make([]byte, n)
	copy(out, d.b[d.off:d.off+int(n)])
	d.off += padded
	return out, nil
}

// Uint32s splits an array argument into native-endian words.
func Uint32s(b []byte) []uint32 {
	out := make([]uint32, 0, len(b)/4)
	for i := 0; i+4 <= len(b); i += 4 {
		out = append(out, wireOrder.Uint32(b[i:]))
	}
	return out
}

// Uint32Array is the inverse of Uint32s.
func Uint32Array(words ...uint32) []byte {
	b := make([]byte, 0, len(words)*4)
	for _, w := range words {
		b = wireOrder.AppendUint32(b, w)
	}
	return b
}

// Header is the fixed prefix of every wire message.
type Header struct {
	Sender ObjectID
	Opcode uint16
	Size   int
}

// ParseHeader decodes the header at the start of b. It returns false when b
// holds fewer than eight bytes.
func ParseHeader(b []byte) (Header, bool) {
	if len(b) < headerSize {
		return Header{}, false
	}
	word := wireOrder.Uint32(b[4:8])
	return Header{
		Sender: ObjectID(wireOrder.Uint32(b[0:4])),
		Opcode: uint16(word & 0xffff),
		Size:   int(word >> 16),
	}, true
}

func pad4(n uint32) uint32 {
	return (n + 3) &^ 3
}
