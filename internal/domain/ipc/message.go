// Package ipc implements the wire protocol and connection bookkeeping for
// the daemon WebSocket bridge (spec components C10/C11).
package ipc

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MessageType is the discriminator field of every IpcMessage.
type MessageType string

const (
	TypeHello          MessageType = "hello"
	TypeHelloAck       MessageType = "hello_ack"
	TypeHeartbeat      MessageType = "heartbeat"
	TypeEvent          MessageType = "event"
	TypeCommand        MessageType = "command"
	TypeCommandResult  MessageType = "command_result"
	TypeError          MessageType = "error"
)

// Message is the tagged union described in spec §3. Only the fields
// relevant to Type are populated; Payload is a generic JSON object.
type Message struct {
	Type        MessageType    `json:"type"`
	ClientID    string         `json:"clientId,omitempty"`
	SentAt      string         `json:"sentAt,omitempty"`
	ConnectionID string        `json:"connectionId,omitempty"`
	ServerTime  string         `json:"serverTime,omitempty"`
	ServerVersion string       `json:"serverVersion,omitempty"`
	EventType   string         `json:"eventType,omitempty"`
	EventID     string         `json:"eventId,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
	CommandID   string         `json:"commandId,omitempty"`
	Name        string         `json:"name,omitempty"`
	IssuedAt    string         `json:"issuedAt,omitempty"`
	OK          *bool          `json:"ok,omitempty"`
	RespondedAt string         `json:"respondedAt,omitempty"`
	Message     string         `json:"message,omitempty"`
	Code        string         `json:"code,omitempty"`
}

// ParseError is returned by Parse on protocol validation failure; it is
// never a Go panic/fatal — the caller replies with an in-band error frame
// (spec §4.9 receive loop, §7 ProtocolViolation).
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string { return e.Reason }

// unsupportedTypeError builds the exact message text the parser must
// produce for an unknown discriminator (spec §4.8).
func unsupportedTypeError(t string) *ParseError {
	return &ParseError{Reason: fmt.Sprintf("Unsupported IPC message type: %s", t)}
}

// Parse validates and normalizes a raw decoded JSON object into a Message.
// All string fields are trimmed on success. Per-type required fields are
// enforced per the table in spec §3.
func Parse(raw map[string]any) (*Message, error) {
	rawType, ok := raw["type"].(string)
	rawType = strings.TrimSpace(rawType)
	if !ok || rawType == "" {
		return nil, &ParseError{Reason: "missing or empty required field: type"}
	}

	switch MessageType(rawType) {
	case TypeHello:
		return parseHello(raw)
	case TypeHeartbeat:
		return parseHeartbeat(raw)
	case TypeEvent:
		return parseEvent(raw)
	case TypeCommandResult:
		return parseCommandResult(raw)
	case TypeError:
		return parseErrorMsg(raw)
	case TypeHelloAck, TypeCommand:
		// Server-originated types are never valid inbound from a client in
		// this direction, but the table only constrains field shape, not
		// direction enforcement (that is the caller's job) — parse them the
		// same way a builder would round-trip them.
		if MessageType(rawType) == TypeHelloAck {
			return parseHelloAck(raw)
		}
		return parseCommand(raw)
	default:
		return nil, unsupportedTypeError(rawType)
	}
}

func reqString(raw map[string]any, field string) (string, error) {
	v, ok := raw[field]
	if !ok {
		return "", &ParseError{Reason: fmt.Sprintf("missing required field: %s", field)}
	}
	s, ok := v.(string)
	if !ok {
		return "", &ParseError{Reason: fmt.Sprintf("field %s must be a string", field)}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", &ParseError{Reason: fmt.Sprintf("field %s must be non-empty", field)}
	}
	return s, nil
}

func optString(raw map[string]any, field string) string {
	v, ok := raw[field]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func reqPayloadObject(raw map[string]any, field string) (map[string]any, error) {
	v, ok := raw[field]
	if !ok {
		return nil, &ParseError{Reason: fmt.Sprintf("missing required field: %s", field)}
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &ParseError{Reason: fmt.Sprintf("field %s must be a plain object", field)}
	}
	return obj, nil
}

func parseHello(raw map[string]any) (*Message, error) {
	clientID, err := reqString(raw, "clientId")
	if err != nil {
		return nil, err
	}
	sentAt, err := reqString(raw, "sentAt")
	if err != nil {
		return nil, err
	}
	return &Message{Type: TypeHello, ClientID: clientID, SentAt: sentAt}, nil
}

func parseHeartbeat(raw map[string]any) (*Message, error) {
	sentAt, err := reqString(raw, "sentAt")
	if err != nil {
		return nil, err
	}
	return &Message{Type: TypeHeartbeat, SentAt: sentAt}, nil
}

func parseEvent(raw map[string]any) (*Message, error) {
	eventType, err := reqString(raw, "eventType")
	if err != nil {
		return nil, err
	}
	eventID, err := reqString(raw, "eventId")
	if err != nil {
		return nil, err
	}
	sentAt, err := reqString(raw, "sentAt")
	if err != nil {
		return nil, err
	}
	payload, err := reqPayloadObject(raw, "payload")
	if err != nil {
		return nil, err
	}
	return &Message{Type: TypeEvent, EventType: eventType, EventID: eventID, SentAt: sentAt, Payload: payload}, nil
}

func parseCommandResult(raw map[string]any) (*Message, error) {
	commandID, err := reqString(raw, "commandId")
	if err != nil {
		return nil, err
	}
	okVal, ok := raw["ok"].(bool)
	if !ok {
		return nil, &ParseError{Reason: "field ok must be a boolean"}
	}
	respondedAt, err := reqString(raw, "respondedAt")
	if err != nil {
		return nil, err
	}
	return &Message{Type: TypeCommandResult, CommandID: commandID, OK: &okVal, RespondedAt: respondedAt}, nil
}

func parseErrorMsg(raw map[string]any) (*Message, error) {
	message, err := reqString(raw, "message")
	if err != nil {
		return nil, err
	}
	sentAt, err := reqString(raw, "sentAt")
	if err != nil {
		return nil, err
	}
	return &Message{Type: TypeError, Message: message, SentAt: sentAt, Code: optString(raw, "code")}, nil
}

func parseHelloAck(raw map[string]any) (*Message, error) {
	connID, err := reqString(raw, "connectionId")
	if err != nil {
		return nil, err
	}
	serverTime, err := reqString(raw, "serverTime")
	if err != nil {
		return nil, err
	}
	return &Message{Type: TypeHelloAck, ConnectionID: connID, ServerTime: serverTime, ServerVersion: optString(raw, "serverVersion")}, nil
}

func parseCommand(raw map[string]any) (*Message, error) {
	commandID, err := reqString(raw, "commandId")
	if err != nil {
		return nil, err
	}
	name, err := reqString(raw, "name")
	if err != nil {
		return nil, err
	}
	issuedAt, err := reqString(raw, "issuedAt")
	if err != nil {
		return nil, err
	}
	var payload map[string]any
	if v, ok := raw["payload"]; ok {
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, &ParseError{Reason: "field payload must be a plain object"}
		}
		payload = obj
	}
	return &Message{Type: TypeCommand, CommandID: commandID, Name: name, IssuedAt: issuedAt, Payload: payload}, nil
}

// ParseRaw decodes a JSON frame then validates it with Parse. A JSON decode
// failure is reported distinctly from a protocol validation failure so the
// caller can reply with the correct error code (invalid_json vs
// invalid_message, spec §4.9).
func ParseRaw(frame []byte) (*Message, error, bool) {
	var raw map[string]any
	if err := json.Unmarshal(frame, &raw); err != nil {
		return nil, err, false // false = JSON error, not a protocol error
	}
	msg, err := Parse(raw)
	return msg, err, true
}

// --- Builders ---

// BuildHelloAck builds the first server frame sent after a successful accept.
// serverVersion is omitted when empty.
func BuildHelloAck(connectionID, serverTime, serverVersion string) *Message {
	return &Message{Type: TypeHelloAck, ConnectionID: connectionID, ServerTime: serverTime, ServerVersion: strings.TrimSpace(serverVersion)}
}

// BuildCommand builds an outbound command frame.
func BuildCommand(commandID, name, issuedAt string, payload map[string]any) *Message {
	return &Message{Type: TypeCommand, CommandID: commandID, Name: name, IssuedAt: issuedAt, Payload: payload}
}

// BuildError builds an in-band error frame. code is omitted when empty.
func BuildError(message, sentAt, code string) *Message {
	return &Message{Type: TypeError, Message: message, SentAt: sentAt, Code: strings.TrimSpace(code)}
}

// Marshal serializes a Message for the wire.
func Marshal(m *Message) ([]byte, error) {
	return json.Marshal(m)
}
