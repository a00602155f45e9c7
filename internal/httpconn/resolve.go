// File: internal/httpconn/resolve.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Maps a parsed request onto a file under the document root, consulting
// the credential store for login and registration submissions.

package httpconn

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/momentics/hioload-httpd/api"
)

// Outcome is the result of request resolution.
type Outcome uint8

const (
	OutcomeReady Outcome = iota
	OutcomeBadRequest
	OutcomeForbidden
	OutcomeNotFound
	OutcomeInternal
)

// Status returns the HTTP status code for o.
func (o Outcome) Status() int {
	switch o {
	case OutcomeReady:
		return 200
	case OutcomeBadRequest:
		return 400
	case OutcomeForbidden:
		return 403
	case OutcomeNotFound:
		return 404
	default:
		return 500
	}
}

// Route pages selected by the first byte of the last path segment.
const (
	PageRegister      = "/register.html"
	PageLogin         = "/log.html"
	PagePicture       = "/picture.html"
	PageVideo         = "/video.html"
	PageWelcome       = "/welcome.html"
	PageLoginError    = "/logError.html"
	PageRegisterError = "/registerError.html"
)

// routeKey returns the first byte after the last '/' of target, or 0.
func routeKey(target string) byte {
	i := strings.LastIndexByte(target, '/')
	if i < 0 || i+1 >= len(target) {
		return 0
	}
	return target[i+1]
}

// resolve picks the file to serve and opens its payload when the outcome
// is OutcomeReady.
func (c *Conn) resolve(ctx context.Context) (Outcome, error) {
	page := c.req.Target
	key := routeKey(page)

	switch {
	case c.req.Method == MethodPost && (key == '2' || key == '3'):
		user, password, err := credentialsForm(c.req.Body)
		if err != nil {
			return OutcomeBadRequest, err
		}
		if key == '2' {
			page = c.login(user, password)
		} else {
			page = c.register(ctx, user, password)
		}
	case key == '0':
		page = PageRegister
	case key == '1':
		page = PageLogin
	case key == '5':
		page = PagePicture
	case key == '6':
		page = PageVideo
	}

	return c.openFile(path.Clean("/" + page))
}

func (c *Conn) login(user, password string) string {
	if c.env.Credentials == nil {
		return PageLoginError
	}
	res := c.env.Credentials.Lookup(user, password)
	c.log.Debug().Str("user", user).Stringer("result", res).Msg("login")
	if res == api.LookupMatch {
		return PageWelcome
	}
	return PageLoginError
}

// register checks out a backend session for the insert only.
func (c *Conn) register(ctx context.Context, user, password string) string {
	if c.env.Credentials == nil || c.env.Sessions == nil {
		return PageRegisterError
	}
	var created bool
	err := c.env.Sessions.With(ctx, func(sess api.BackendSession) error {
		ok, err := c.env.Credentials.Register(sess, user, password)
		created = ok
		return err
	})
	if err != nil {
		c.log.Warn().Err(err).Str("user", user).Msg("registration failed")
		return PageRegisterError
	}
	if !created {
		c.log.Debug().Str("user", user).Msg("registration rejected, user exists")
		return PageRegisterError
	}
	c.log.Info().Str("user", user).Msg("user registered")
	return PageLogin
}

// openFile stats name and, for a readable regular file, maps it.
func (c *Conn) openFile(name string) (Outcome, error) {
	c.file = name
	info, err := c.env.Source.Stat(name)
	switch {
	case errors.Is(err, api.ErrNotFound):
		return OutcomeNotFound, err
	case errors.Is(err, api.ErrForbidden):
		return OutcomeForbidden, err
	case err != nil:
		return OutcomeInternal, err
	}
	if !info.WorldReadable() {
		return OutcomeForbidden, api.ErrForbidden
	}
	if info.Dir {
		return OutcomeBadRequest, api.ErrIsDirectory
	}
	c.fileSize = info.Size
	if info.Size == 0 {
		return OutcomeReady, nil
	}
	payload, err := c.env.Source.Open(name, info.Size)
	if err != nil {
		return OutcomeInternal, err
	}
	c.payload = payload
	return OutcomeReady, nil
}
