// File: internal/httpconn/form.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package httpconn

import (
	"fmt"
	"net/url"

	"github.com/momentics/hioload-httpd/api"
)

// credentialsForm decodes an "&"-delimited user/password submission.
// Both fields must be present and the user name must not be empty.
func credentialsForm(body string) (user, password string, err error) {
	values, err := url.ParseQuery(body)
	if err != nil {
		return "", "", fmt.Errorf("form body: %w", api.ErrBadRequest)
	}
	if !values.Has("user") || !values.Has("password") {
		return "", "", fmt.Errorf("form needs user and password: %w", api.ErrBadRequest)
	}
	user = values.Get("user")
	if user == "" {
		return "", "", fmt.Errorf("empty user name: %w", api.ErrBadRequest)
	}
	return user, values.Get("password"), nil
}
