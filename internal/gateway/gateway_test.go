package gateway

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"network", &NetworkError{Op: "list", Err: errors.New("refused")}, KindNetwork},
		{"wrapped network", fmt.Errorf("tick: %w", &NetworkError{Op: "list", Err: context.DeadlineExceeded}), KindNetwork},
		{"server", &ServerError{Status: 500}, KindServer},
		{"unauthorized", &ServerError{Status: 401, Message: "bad token"}, KindAuth},
		{"forbidden", fmt.Errorf("x: %w", &ServerError{Status: 403}), KindAuth},
		{"other", errors.New("boom"), KindOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Kind(tt.err))
		})
	}
}

func TestNetworkError_Unwrap(t *testing.T) {
	err := &NetworkError{Op: "unread-count", Err: context.Canceled}
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "unread-count")
}

func TestServerError_Message(t *testing.T) {
	assert.Equal(t, "server error (502)", (&ServerError{Status: 502}).Error())
	assert.Equal(t, "server error (400): bad", (&ServerError{Status: 400, Message: "bad"}).Error())
}
