// File: internal/httpconn/line.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package httpconn

// LineStatus is the outcome of one line scan.
type LineStatus uint8

const (
	// LineComplete: a terminated line is available.
	LineComplete LineStatus = iota
	// LineIncomplete: no terminator yet; wait for more bytes.
	LineIncomplete
	// LineMalformed: a CR not followed by LF, or a bare LF too early.
	LineMalformed
)

func (s LineStatus) String() string {
	switch s {
	case LineComplete:
		return "complete"
	case LineIncomplete:
		return "incomplete"
	default:
		return "malformed"
	}
}

// scanLine looks for the next line terminator in rbuf[checked:filled].
// On LineComplete the returned slice is the line without its terminator
// and start/checked move past it. A CR at the end of the filled region
// leaves checked on the CR so the next scan resumes there.
func (c *Conn) scanLine() (LineStatus, []byte) {
	for ; c.checked < c.filled; c.checked++ {
		switch c.rbuf[c.checked] {
		case '\r':
			if c.checked+1 == c.filled {
				return LineIncomplete, nil
			}
			if c.rbuf[c.checked+1] != '\n' {
				return LineMalformed, nil
			}
			line := c.rbuf[c.start:c.checked]
			c.checked += 2
			c.start = c.checked
			return LineComplete, line
		case '\n':
			if c.checked < 2 {
				return LineMalformed, nil
			}
			line := c.rbuf[c.start:c.checked]
			c.checked++
			c.start = c.checked
			return LineComplete, line
		}
	}
	return LineIncomplete, nil
}
