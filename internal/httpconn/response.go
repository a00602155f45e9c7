// File: internal/httpconn/response.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Response composition into the fixed write buffer. File payloads are not
// copied; they become the second writev segment.

package httpconn

import (
	"fmt"

	"github.com/momentics/hioload-httpd/api"
)

// Fixed response bodies.
const (
	BodyBadRequest = "Your request has bad syntax.\n"
	BodyForbidden  = "You don't have permission to get the file.\n"
	BodyNotFound   = "The requested file was not found.\n"
	BodyInternal   = "There was an unusual problem serving the request file.\n"
	BodyEmptyFile  = "<html><body></body></html>"
)

var reasons = map[int]string{
	200: "OK",
	400: "Bad Request",
	403: "Forbidden",
	404: "Not Found",
	500: "Internal Error",
}

func errorBody(o Outcome) string {
	switch o {
	case OutcomeBadRequest:
		return BodyBadRequest
	case OutcomeForbidden:
		return BodyForbidden
	case OutcomeNotFound:
		return BodyNotFound
	default:
		return BodyInternal
	}
}

// appendf formats into the write buffer. It never grows the buffer.
func (c *Conn) appendf(format string, args ...any) error {
	b := fmt.Appendf(c.wbuf[:c.wlen], format, args...)
	if len(b) > cap(c.wbuf) {
		return api.ErrResponseTooLarge
	}
	c.wlen = len(b)
	return nil
}

func (c *Conn) appendHeaders(status, contentLength int) error {
	if err := c.appendf("%s %d %s\r\n", SupportedVersion, status, reasons[status]); err != nil {
		return err
	}
	if err := c.appendf("Content-Length: %d\r\n", contentLength); err != nil {
		return err
	}
	conn := "close"
	if c.keepAlive() {
		conn = "keep-alive"
	}
	if err := c.appendf("Connection: %s\r\n", conn); err != nil {
		return err
	}
	return c.appendf("\r\n")
}

// compose writes the response for o and prepares the writev segments.
func (c *Conn) compose(o Outcome) error {
	c.wlen = 0
	c.status = o.Status()

	if o == OutcomeReady {
		if c.payload != nil {
			size := len(c.payload.Bytes())
			if err := c.appendHeaders(c.status, size); err != nil {
				return err
			}
			c.iov[0] = c.wbuf[:c.wlen]
			c.iov[1] = c.payload.Bytes()
			c.toSend = c.wlen + size
			return nil
		}
		if err := c.appendHeaders(c.status, len(BodyEmptyFile)); err != nil {
			return err
		}
		if err := c.appendf("%s", BodyEmptyFile); err != nil {
			return err
		}
	} else {
		body := errorBody(o)
		if err := c.appendHeaders(c.status, len(body)); err != nil {
			return err
		}
		if err := c.appendf("%s", body); err != nil {
			return err
		}
	}
	c.iov[0] = c.wbuf[:c.wlen]
	c.iov[1] = nil
	c.toSend = c.wlen
	return nil
}
