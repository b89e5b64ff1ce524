package socketio

import (
	"encoding/json"
	"strconv"
	"strings"
)

// PacketType indicates type of a socket.io v1 Packet
type PacketType int

const (
	PacketTypeDisconnect PacketType = iota
	PacketTypeConnect
	PacketTypeHeartbeat
	PacketTypeMessage
	PacketTypeJSONMessage
	PacketTypeEvent
	PacketTypeAck
	PacketTypeError
	PacketTypeNoop
)

// String returns string representation of a PacketType
func (p PacketType) String() string {
	switch p {
	case PacketTypeDisconnect:
		return "disconnect"
	case PacketTypeConnect:
		return "connect"
	case PacketTypeHeartbeat:
		return "heartbeat"
	case PacketTypeMessage:
		return "message"
	case PacketTypeJSONMessage:
		return "json"
	case PacketTypeEvent:
		return "event"
	case PacketTypeAck:
		return "ack"
	case PacketTypeError:
		return "error"
	case PacketTypeNoop:
		return "noop"
	}
	return "invalid"
}

// Valid reports whether p is one of the defined packet types
func (p PacketType) Valid() bool {
	return p >= PacketTypeDisconnect && p <= PacketTypeNoop
}

// hasData reports whether the data separator is always written for p
func (p PacketType) hasData() bool {
	switch p {
	case PacketTypeMessage, PacketTypeJSONMessage, PacketTypeEvent, PacketTypeAck, PacketTypeError:
		return true
	}
	return false
}

// Packet is message abstraction, representing for data exchanged between socket.io server and client
type Packet struct {
	Type     PacketType
	ID       *uint64
	AckData  bool   // message id carried a trailing '+'
	Endpoint string // wire form, empty for root
	Data     string
}

// Encode returns the wire form `type:id:endpoint[:data]` of p
func (p *Packet) Encode() string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(int(p.Type)))
	b.WriteByte(':')
	if p.ID != nil {
		b.WriteString(strconv.FormatUint(*p.ID, 10))
		if p.AckData {
			b.WriteByte('+')
		}
	}
	b.WriteByte(':')
	b.WriteString(wireEndpoint(p.Endpoint))
	if p.Type.hasData() || p.Data != "" {
		b.WriteByte(':')
		b.WriteString(p.Data)
	}
	return b.String()
}

func (p *Packet) String() string {
	return p.Encode()
}

// Decode parses a wire frame. Missing trailing fields decode as empty and
// unparseable numeric fields as 0; only an empty frame is an error.
func Decode(frame string) (*Packet, error) {
	if frame == "" {
		return nil, ErrInvalidPacket
	}
	fields := strings.SplitN(frame, ":", 4)
	p := &Packet{}
	if n, ok := leadingUint(fields[0]); ok {
		p.Type = PacketType(n)
	}
	if len(fields) > 1 && fields[1] != "" {
		id, _ := leadingUint(fields[1])
		p.ID = newid(id)
		p.AckData = strings.HasSuffix(fields[1], "+")
	}
	if len(fields) > 2 {
		p.Endpoint = fields[2]
	}
	if len(fields) > 3 {
		p.Data = fields[3]
	}
	return p, nil
}

// Event returns event name and args of an Event packet's data
func (p *Packet) Event() (name, args string) {
	return ParseEvent(p.Data)
}

// ParseEvent extracts name and args from `{"name":"<event>","args":<json>}`.
// A payload without a name key yields an empty name; args is passed through unmodified.
func ParseEvent(data string) (name, args string) {
	var ev struct {
		Name string          `json:"name"`
		Args json.RawMessage `json:"args"`
	}
	if err := json.Unmarshal([]byte(data), &ev); err == nil {
		return ev.Name, string(ev.Args)
	}
	return scanEvent(data)
}

// scanEvent reads name and args from a payload that is not valid JSON
func scanEvent(data string) (name, args string) {
	i := strings.Index(data, `"name"`)
	if i < 0 {
		return
	}
	rest := data[i+len(`"name"`):]
	colon := strings.IndexByte(rest, ':')
	if colon < 0 {
		return
	}
	rest = rest[colon+1:]
	end := strings.IndexByte(rest, ',')
	if end < 0 {
		// no args: name runs up to the closing brace
		if end = strings.IndexByte(rest, '}'); end < 0 {
			return
		}
		return unquote(rest[:end]), ""
	}
	name = unquote(rest[:end])
	rest = rest[end+1:]
	if j := strings.Index(rest, `"args"`); j >= 0 {
		rest = rest[j+len(`"args"`):]
		if colon = strings.IndexByte(rest, ':'); colon >= 0 {
			args = strings.TrimSpace(rest[colon+1:])
			args = strings.TrimSpace(strings.TrimSuffix(args, "}"))
		}
	}
	return
}

func unquote(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, `"`, ""))
}

// NewConnectPacket returns a Connect packet for endpoint
func NewConnectPacket(endpoint string) *Packet {
	return &Packet{Type: PacketTypeConnect, Endpoint: endpoint}
}

// NewDisconnectPacket returns a Disconnect packet for endpoint; root disconnects the whole connection
func NewDisconnectPacket(endpoint string) *Packet {
	return &Packet{Type: PacketTypeDisconnect, Endpoint: endpoint}
}

// NewHeartbeatPacket returns a Heartbeat packet
func NewHeartbeatPacket() *Packet {
	return &Packet{Type: PacketTypeHeartbeat}
}

// NewMessagePacket returns a plain Message packet carrying msg
func NewMessagePacket(endpoint, msg string) *Packet {
	return &Packet{Type: PacketTypeMessage, Endpoint: endpoint, Data: msg}
}

// NewEventPacket returns an Event packet; args must already be encoded JSON and is not validated
func NewEventPacket(endpoint, name, args string) *Packet {
	return &Packet{
		Type:     PacketTypeEvent,
		Endpoint: endpoint,
		Data:     `{"name":"` + name + `","args":` + args + `}`,
	}
}

// wireEndpoint maps the root endpoint to its empty wire form
func wireEndpoint(endpoint string) string {
	if endpoint == RootEndpoint {
		return ""
	}
	return endpoint
}

// endpointPath maps a wire endpoint to the client registry key
func endpointPath(endpoint string) string {
	if endpoint == "" {
		return RootEndpoint
	}
	return endpoint
}

func leadingUint(s string) (uint64, bool) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, false
	}
	n, err := strconv.ParseUint(s[:i], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func newid(id uint64) *uint64 {
	i := new(uint64)
	*i = id
	return i
}
