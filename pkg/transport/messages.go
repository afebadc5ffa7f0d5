package transport

import "encoding/json"

// ProbeRequest carries no fields; probing is a pure identity read.
type ProbeRequest struct{}

// ProbeReply mirrors beacon.Identity on the wire.
type ProbeReply struct {
	Version string `json:"version"`
	Mode    string `json:"mode"`
}

// AcceptRequest asks the remote's dispatcher to accept this runtime as a
// connection of Mode, carrying Tags (meaningful only for worker mode).
type AcceptRequest struct {
	Name string   `json:"name"`
	Mode string   `json:"mode"`
	Tags []string `json:"tags,omitempty"`
}

// AcceptReply reports the accept outcome; Error is empty on success.
type AcceptReply struct {
	Error string `json:"error,omitempty"`
}

// HeartbeatRequest/Reply back the liveness monitor in pkg/health.
type HeartbeatRequest struct {
	Name string `json:"name"`
}

type HeartbeatReply struct{}

// InvokeRequest carries a named-procedure call for the task executor:
// a procedure name plus its JSON-encoded arguments, the same shape for
// every registered procedure regardless of what it does locally.
type InvokeRequest struct {
	Procedure string          `json:"procedure"`
	Args      json.RawMessage `json:"args,omitempty"`
}

// InvokeReply carries the procedure's result or an error string.
type InvokeReply struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}
