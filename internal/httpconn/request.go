// File: internal/httpconn/request.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package httpconn

// State is the position of the request parser.
type State uint8

const (
	StateRequestLine State = iota
	StateHeaders
	StateBody
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateRequestLine:
		return "request_line"
	case StateHeaders:
		return "headers"
	case StateBody:
		return "body"
	default:
		return "complete"
	}
}

// Method is a supported request method.
type Method uint8

const (
	MethodGet Method = iota + 1
	MethodPost
)

func (m Method) String() string {
	switch m {
	case MethodGet:
		return "GET"
	case MethodPost:
		return "POST"
	default:
		return ""
	}
}

// Request is the normalized result of parsing one request.
type Request struct {
	Method        Method
	Target        string
	Version       string
	Host          string
	KeepAlive     bool
	ContentLength int
	Body          string
}

// HasBody reports whether the request was a form submission.
func (r *Request) HasBody() bool {
	return r.Method == MethodPost
}

// MaxTargetLen caps the normalized request target.
const MaxTargetLen = 200

// SupportedVersion is the only protocol version accepted.
const SupportedVersion = "HTTP/1.1"
