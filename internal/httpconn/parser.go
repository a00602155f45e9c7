// File: internal/httpconn/parser.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Incremental request parser. Each call consumes as many complete lines
// as the read buffer holds and stops at the first incomplete one.

package httpconn

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/momentics/hioload-httpd/api"
)

// parseResult tells the caller what the parser reached.
type parseResult uint8

const (
	parseIncomplete parseResult = iota
	parseComplete
	parseFailed
)

// parse advances the state machine over rbuf[checked:filled]. On
// parseFailed the returned error says why; ErrRequestTooLarge means the
// buffer filled up before the request did.
func (c *Conn) parse() (parseResult, error) {
	for {
		if c.state == StateBody {
			if c.filled-c.start >= c.req.ContentLength {
				c.req.Body = string(c.rbuf[c.start : c.start+c.req.ContentLength])
				c.state = StateComplete
				return parseComplete, nil
			}
			break
		}

		status, line := c.scanLine()
		if status == LineIncomplete {
			break
		}
		if status == LineMalformed {
			return parseFailed, fmt.Errorf("line terminator at offset %d: %w", c.checked, api.ErrBadRequest)
		}

		switch c.state {
		case StateRequestLine:
			if err := c.parseRequestLine(line); err != nil {
				return parseFailed, err
			}
			c.state = StateHeaders
		case StateHeaders:
			done, err := c.parseHeader(line)
			if err != nil {
				return parseFailed, err
			}
			if !done {
				continue
			}
			if c.req.ContentLength > 0 {
				c.state = StateBody
				continue
			}
			c.state = StateComplete
			return parseComplete, nil
		}
	}
	if c.filled >= len(c.rbuf) {
		return parseFailed, api.ErrRequestTooLarge
	}
	return parseIncomplete, nil
}

// parseRequestLine splits METHOD TARGET VERSION and normalizes the target.
func (c *Conn) parseRequestLine(line []byte) error {
	fields := bytes.Fields(line)
	if len(fields) != 3 {
		return fmt.Errorf("request line has %d fields: %w", len(fields), api.ErrBadRequest)
	}

	method := string(fields[0])
	switch {
	case strings.EqualFold(method, "GET"):
		c.req.Method = MethodGet
	case strings.EqualFold(method, "POST"):
		c.req.Method = MethodPost
	default:
		return fmt.Errorf("method %q: %w", method, api.ErrMethodUnsupported)
	}

	version := string(fields[2])
	if !strings.EqualFold(version, SupportedVersion) {
		return fmt.Errorf("version %q: %w", version, api.ErrVersionMismatch)
	}
	c.req.Version = SupportedVersion

	target, err := normalizeTarget(string(fields[1]), c.env.DefaultDocument)
	if err != nil {
		return err
	}
	c.req.Target = target
	return nil
}

// normalizeTarget strips an absolute-form scheme and authority, requires an
// origin-form path and maps "/" to the default document.
func normalizeTarget(target, defaultDoc string) (string, error) {
	for _, scheme := range [...]string{"http://", "https://"} {
		if len(target) >= len(scheme) && strings.EqualFold(target[:len(scheme)], scheme) {
			rest := target[len(scheme):]
			i := strings.IndexByte(rest, '/')
			if i < 0 {
				return "", fmt.Errorf("target %q has no path: %w", target, api.ErrBadRequest)
			}
			target = rest[i:]
			break
		}
	}
	if target == "" || target[0] != '/' {
		return "", fmt.Errorf("target %q: %w", target, api.ErrBadRequest)
	}
	if target == "/" {
		target = "/" + defaultDoc
	}
	if len(target) > MaxTargetLen {
		return "", fmt.Errorf("target length %d: %w", len(target), api.ErrBadRequest)
	}
	return target, nil
}

// parseHeader consumes one header line. done is true on the blank line
// that ends the header block.
func (c *Conn) parseHeader(line []byte) (done bool, err error) {
	if len(line) == 0 {
		return true, nil
	}
	name, value, ok := bytes.Cut(line, []byte{':'})
	if !ok {
		c.log.Debug().Bytes("line", line).Msg("header without colon ignored")
		return false, nil
	}
	key := string(bytes.TrimSpace(name))
	val := string(bytes.TrimSpace(value))

	switch {
	case strings.EqualFold(key, "Connection"):
		c.req.KeepAlive = strings.EqualFold(val, "keep-alive")
	case strings.EqualFold(key, "Content-Length"):
		n, err := strconv.ParseUint(val, 10, 31)
		if err != nil {
			return false, fmt.Errorf("content-length %q: %w", val, api.ErrBadRequest)
		}
		c.req.ContentLength = int(n)
	case strings.EqualFold(key, "Host"):
		c.req.Host = val
	default:
		c.log.Debug().Str("header", key).Msg("unknown header ignored")
	}
	return false, nil
}
