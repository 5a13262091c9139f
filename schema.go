package aurora

import (
	"context"

	"github.com/qri-io/jsonschema"
)

// Request is the canonical, transport-independent form of a tool invocation.
// Every adapter decodes its wire framing into this shape before handing the
// call to the dispatcher. A Request is created per inbound call and consumed
// once.
type Request struct {
	// ID is an opaque correlation token chosen by the caller. It is echoed
	// back unchanged on the matching Response.
	ID string `json:"id"`

	// Tool names the registered operation to invoke.
	Tool string `json:"tool"`

	// Arguments carries the call's input fields, validated against the
	// tool's input schema before the handler runs.
	Arguments map[string]any `json:"arguments,omitempty"`

	// sessionID binds the request to the session it arrived on. Adapters
	// set it; it never crosses the wire.
	sessionID string
}

// Response is the canonical result of a tool invocation. Exactly one of
// Result or Error is meaningful, selected by OK. A Response is immutable once
// produced.
type Response struct {
	// ID matches the originating Request.ID.
	ID string `json:"id"`

	// OK reports whether the call succeeded.
	OK bool `json:"ok"`

	// Result holds the handler's output when OK is true.
	Result any `json:"result,omitempty"`

	// Error describes the failure when OK is false.
	Error *ResponseError `json:"error,omitempty"`
}

// ResponseError is the structured failure callers receive in place of a raw
// fault. Message is safe for exposure; internal details stay in the server
// log.
type ResponseError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// ErrorKind classifies a failed invocation on the wire.
type ErrorKind string

// The full failure taxonomy. Every failure a caller can observe is one of
// these kinds.
const (
	// ErrorKindUnknownTool reports a tool name with no registration.
	ErrorKindUnknownTool ErrorKind = "UnknownTool"

	// ErrorKindValidation reports arguments that failed schema validation.
	// The message enumerates every offending field.
	ErrorKindValidation ErrorKind = "ValidationError"

	// ErrorKindTimeout reports a handler that exceeded its deadline.
	ErrorKindTimeout ErrorKind = "Timeout"

	// ErrorKindHandler reports a fault inside a tool handler.
	ErrorKindHandler ErrorKind = "HandlerError"

	// ErrorKindUnknownSession reports a session id that is not active.
	ErrorKindUnknownSession ErrorKind = "UnknownSession"

	// ErrorKindTransport reports a framing or decoding failure at the
	// adapter boundary.
	ErrorKindTransport ErrorKind = "TransportError"
)

func newResultResponse(id string, result any) Response {
	return Response{
		ID:     id,
		OK:     true,
		Result: result,
	}
}

func newErrorResponse(id string, kind ErrorKind, message string) Response {
	return Response{
		ID: id,
		Error: &ResponseError{
			Kind:    kind,
			Message: message,
		},
	}
}

// ToolHandler executes one tool call. Arguments have already passed schema
// validation. The context carries the dispatcher's deadline; handlers doing
// blocking work should honor it. A returned error becomes a HandlerError
// response with the error's message.
type ToolHandler func(ctx context.Context, args map[string]any) (any, error)

// Tool describes one invocable operation: its unique name, a human-readable
// description, the JSON Schema its arguments must satisfy, and the handler
// that runs validated calls. Tools are immutable after registration.
type Tool struct {
	Name        string
	Description string

	// InputSchema validates Request.Arguments. A nil schema accepts any
	// arguments.
	InputSchema *jsonschema.Schema

	Handler ToolHandler
}

// ToolSummary is the introspection view of a registered tool, as returned by
// list-tools style operations.
type ToolSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Info identifies the server to clients, surfaced through health and
// server-info responses.
type Info struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// TransportKind identifies which adapter a session arrived through.
type TransportKind string

// The supported transports.
const (
	TransportStdio TransportKind = "stdio"
	TransportHTTP  TransportKind = "http"
	TransportSSE   TransportKind = "sse"
)
