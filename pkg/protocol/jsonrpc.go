// Package protocol defines the JSON-RPC 2.0 envelope and the MCP messages
// the bridge exchanges with its tool servers.
package protocol

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RawMessage is an encoded JSON value kept as bytes.
type RawMessage = jsoniter.RawMessage

const (
	// JSONRPCVersion is the supported JSON-RPC version
	JSONRPCVersion = "2.0"
)

// ErrorCode represents standard JSON-RPC 2.0 error codes
type ErrorCode int

// Standard error codes as per JSON-RPC 2.0 specification
const (
	ParseError     ErrorCode = -32700
	InvalidRequest ErrorCode = -32600
	MethodNotFound ErrorCode = -32601
	InvalidParams  ErrorCode = -32602
	InternalError  ErrorCode = -32603
)

// JSONRPCMessage carries the version every message repeats.
type JSONRPCMessage struct {
	JSONRPC string `json:"jsonrpc"`
}

// Request represents a JSON-RPC 2.0 request
type Request struct {
	JSONRPCMessage
	ID     any        `json:"id"`
	Method string     `json:"method"`
	Params RawMessage `json:"params,omitempty"`
}

// NewRequest creates a new JSON-RPC 2.0 request
func NewRequest(id any, method string, params any) (*Request, error) {
	raw, err := encodeParams(params)
	if err != nil {
		return nil, err
	}
	return &Request{
		JSONRPCMessage: JSONRPCMessage{JSONRPC: JSONRPCVersion},
		ID:             id,
		Method:         method,
		Params:         raw,
	}, nil
}

// Response represents a JSON-RPC 2.0 response
type Response struct {
	JSONRPCMessage
	ID     any        `json:"id"`
	Result RawMessage `json:"result,omitempty"`
	Error  *Error     `json:"error,omitempty"`
}

// NewResponse creates a success response.
func NewResponse(id any, result any) (*Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return &Response{
		JSONRPCMessage: JSONRPCMessage{JSONRPC: JSONRPCVersion},
		ID:             id,
		Result:         raw,
	}, nil
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id any, code ErrorCode, message string) *Response {
	return &Response{
		JSONRPCMessage: JSONRPCMessage{JSONRPC: JSONRPCVersion},
		ID:             id,
		Error:          &Error{Code: code, Message: message},
	}
}

// Notification represents a JSON-RPC 2.0 notification
type Notification struct {
	JSONRPCMessage
	Method string     `json:"method"`
	Params RawMessage `json:"params,omitempty"`
}

// NewNotification creates a new JSON-RPC 2.0 notification
func NewNotification(method string, params any) (*Notification, error) {
	raw, err := encodeParams(params)
	if err != nil {
		return nil, err
	}
	return &Notification{
		JSONRPCMessage: JSONRPCMessage{JSONRPC: JSONRPCVersion},
		Method:         method,
		Params:         raw,
	}, nil
}

func encodeParams(params any) (RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}
	return raw, nil
}

// Error represents a JSON-RPC 2.0 error object. It is returned as a Go
// error by the wire transports.
type Error struct {
	Code    ErrorCode  `json:"code"`
	Message string     `json:"message"`
	Data    RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error: code = %d desc = %s", e.Code, e.Message)
}

// Message is any incoming JSON-RPC message before it is classified.
type Message struct {
	JSONRPCMessage
	ID     any        `json:"id,omitempty"`
	Method string     `json:"method,omitempty"`
	Params RawMessage `json:"params,omitempty"`
	Result RawMessage `json:"result,omitempty"`
	Error  *Error     `json:"error,omitempty"`
}

// DecodeMessage parses one JSON-RPC message.
func DecodeMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("malformed JSON-RPC message: %w", err)
	}
	if msg.JSONRPC != JSONRPCVersion {
		return nil, fmt.Errorf("unsupported JSON-RPC version %q", msg.JSONRPC)
	}
	return &msg, nil
}

// IsResponse reports a reply to one of our requests.
func (m *Message) IsResponse() bool { return m.ID != nil && m.Method == "" }

// IsRequest reports a request the peer expects us to answer.
func (m *Message) IsRequest() bool { return m.ID != nil && m.Method != "" }

// IsNotification reports a one-way message.
func (m *Message) IsNotification() bool { return m.ID == nil && m.Method != "" }

// Response returns the message as a Response. Only meaningful when
// IsResponse is true.
func (m *Message) Response() *Response {
	return &Response{JSONRPCMessage: m.JSONRPCMessage, ID: m.ID, Result: m.Result, Error: m.Error}
}

// IDKey normalizes a request ID for map lookups; a numeric 7 and a string
// "7" are distinct keys.
func IDKey(id any) string {
	switch v := id.(type) {
	case string:
		return "s:" + v
	case nil:
		return ""
	default:
		return fmt.Sprintf("n:%v", v)
	}
}
