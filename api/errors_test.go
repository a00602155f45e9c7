// File: api/errors_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorCode
	}{
		{nil, ErrCodeOK},
		{ErrBadRequest, ErrCodeProtocol},
		{fmt.Errorf("line 1: %w", ErrVersionMismatch), ErrCodeProtocol},
		{ErrRequestTooLarge, ErrCodeProtocol},
		{ErrNotFound, ErrCodeNotFound},
		{ErrForbidden, ErrCodeForbidden},
		{ErrIsDirectory, ErrCodeIsDirectory},
		{ErrQueueFull, ErrCodeCapacity},
		{ErrWouldBlock, ErrCodeTransient},
		{ErrPeerClosed, ErrCodeFatalIO},
		{errors.New("boom"), ErrCodeInternal},
		{WrapError(ErrCodeFacility, "epoll wait", errors.New("EBADF")), ErrCodeFacility},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CodeOf(tc.err), "%v", tc.err)
	}
}

func TestErrorUnwrapAndContext(t *testing.T) {
	err := WrapError(ErrCodeInternal, "open file", ErrForbidden).WithContext("file", "/x")
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Contains(t, err.Error(), "open file: permission denied")
	assert.Contains(t, err.Error(), "file:/x")
	assert.Equal(t, "internal", err.Code.String())
}
