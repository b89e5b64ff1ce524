package socketio

import (
	"io"
	"sync"
	"time"

	"github.com/tinylib/msgp/msgp"
)

// Direction tells whether a recorded frame was sent or received
type Direction uint8

const (
	DirectionInbound Direction = iota
	DirectionOutbound
)

// String returns string representation of a Direction
func (d Direction) String() string {
	switch d {
	case DirectionInbound:
		return "in"
	case DirectionOutbound:
		return "out"
	}
	return "invalid"
}

// Record is one frame as seen on a session, msgpack encoded in a Journal
type Record struct {
	Time      time.Time
	Direction Direction
	Session   string // host:port
	Frame     string
}

// EncodeMsg implements msgp.Encodable
func (z *Record) EncodeMsg(en *msgp.Writer) (err error) {
	if err = en.WriteMapHeader(4); err != nil {
		return
	}
	if err = en.WriteString("time"); err != nil {
		return
	}
	if err = en.WriteInt64(z.Time.UnixNano()); err != nil {
		return
	}
	if err = en.WriteString("dir"); err != nil {
		return
	}
	if err = en.WriteUint8(uint8(z.Direction)); err != nil {
		return
	}
	if err = en.WriteString("sess"); err != nil {
		return
	}
	if err = en.WriteString(z.Session); err != nil {
		return
	}
	if err = en.WriteString("frame"); err != nil {
		return
	}
	return en.WriteString(z.Frame)
}

// DecodeMsg implements msgp.Decodable
func (z *Record) DecodeMsg(dc *msgp.Reader) (err error) {
	var field []byte
	var n uint32
	n, err = dc.ReadMapHeader()
	if err != nil {
		return
	}
	for n > 0 {
		n--
		field, err = dc.ReadMapKeyPtr()
		if err != nil {
			return
		}
		switch msgp.UnsafeString(field) {
		case "time":
			var ns int64
			if ns, err = dc.ReadInt64(); err != nil {
				return
			}
			z.Time = time.Unix(0, ns)
		case "dir":
			var d uint8
			if d, err = dc.ReadUint8(); err != nil {
				return
			}
			z.Direction = Direction(d)
		case "sess":
			if z.Session, err = dc.ReadString(); err != nil {
				return
			}
		case "frame":
			if z.Frame, err = dc.ReadString(); err != nil {
				return
			}
		default:
			if err = dc.Skip(); err != nil {
				return
			}
		}
	}
	return
}

// MarshalMsg implements msgp.Marshaler
func (z *Record) MarshalMsg(b []byte) (o []byte, err error) {
	o = msgp.Require(b, z.Msgsize())
	o = msgp.AppendMapHeader(o, 4)
	o = msgp.AppendString(o, "time")
	o = msgp.AppendInt64(o, z.Time.UnixNano())
	o = msgp.AppendString(o, "dir")
	o = msgp.AppendUint8(o, uint8(z.Direction))
	o = msgp.AppendString(o, "sess")
	o = msgp.AppendString(o, z.Session)
	o = msgp.AppendString(o, "frame")
	o = msgp.AppendString(o, z.Frame)
	return
}

// UnmarshalMsg implements msgp.Unmarshaler
func (z *Record) UnmarshalMsg(bts []byte) (o []byte, err error) {
	var field []byte
	var n uint32
	n, bts, err = msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return
	}
	for n > 0 {
		n--
		field, bts, err = msgp.ReadMapKeyZC(bts)
		if err != nil {
			return
		}
		switch msgp.UnsafeString(field) {
		case "time":
			var ns int64
			if ns, bts, err = msgp.ReadInt64Bytes(bts); err != nil {
				return
			}
			z.Time = time.Unix(0, ns)
		case "dir":
			var d uint8
			if d, bts, err = msgp.ReadUint8Bytes(bts); err != nil {
				return
			}
			z.Direction = Direction(d)
		case "sess":
			if z.Session, bts, err = msgp.ReadStringBytes(bts); err != nil {
				return
			}
		case "frame":
			if z.Frame, bts, err = msgp.ReadStringBytes(bts); err != nil {
				return
			}
		default:
			if bts, err = msgp.Skip(bts); err != nil {
				return
			}
		}
	}
	o = bts
	return
}

// Msgsize returns an upper bound estimate of the number of bytes occupied by the serialized message
func (z *Record) Msgsize() (s int) {
	return msgp.MapHeaderSize +
		msgp.StringPrefixSize + 4 + msgp.Int64Size +
		msgp.StringPrefixSize + 3 + msgp.Uint8Size +
		msgp.StringPrefixSize + 4 + msgp.StringPrefixSize + len(z.Session) +
		msgp.StringPrefixSize + 5 + msgp.StringPrefixSize + len(z.Frame)
}

// Journal appends Records to a stream. It is safe for concurrent use.
type Journal struct {
	w   *msgp.Writer
	now func() time.Time
	sync.Mutex
}

// NewJournal creates a Journal writing to w
func NewJournal(w io.Writer) *Journal {
	return &Journal{w: msgp.NewWriter(w), now: time.Now}
}

// Append encodes r and flushes it to the underlying writer
func (j *Journal) Append(r *Record) error {
	j.Lock()
	defer j.Unlock()
	if err := r.EncodeMsg(j.w); err != nil {
		return err
	}
	return j.w.Flush()
}

func (j *Journal) record(dir Direction, session, frame string) error {
	return j.Append(&Record{Time: j.now(), Direction: dir, Session: session, Frame: frame})
}

// JournalReader reads Records written by a Journal
type JournalReader struct {
	r *msgp.Reader
}

// NewJournalReader creates a JournalReader over r
func NewJournalReader(r io.Reader) *JournalReader {
	return &JournalReader{r: msgp.NewReader(r)}
}

// Next returns the next Record, or io.EOF at the end of the stream
func (jr *JournalReader) Next() (*Record, error) {
	if _, err := jr.r.R.Peek(1); err != nil {
		return nil, err
	}
	var rec Record
	if err := rec.DecodeMsg(jr.r); err != nil {
		return nil, err
	}
	return &rec, nil
}
