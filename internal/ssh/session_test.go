package ssh

import (
	"errors"
	"testing"
)

func TestIsAuthError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("ssh: handshake failed: ssh: unable to authenticate, attempted methods [none publickey]"), true},
		{errors.New("dial tcp 10.0.0.1:22: connect: no supported methods remain"), true},
		{errors.New("dial tcp 10.0.0.1:22: connect: connection refused"), false},
	}
	for _, c := range cases {
		if got := isAuthError(c.err); got != c.want {
			t.Errorf("isAuthError(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestSessionIsClosedReflectsMarkClosed(t *testing.T) {
	s := newTestSession("a")
	if s.IsClosed() {
		t.Fatal("new session should not start closed")
	}
	s.markClosed()
	if !s.IsClosed() {
		t.Error("expected session to report closed after markClosed")
	}
}

func TestSessionParams(t *testing.T) {
	s := &Session{params: ConnectionParams{Alias: "a", Host: "h", Port: 22}}
	if got := s.Params(); got.Alias != "a" || got.Host != "h" {
		t.Errorf("Params() = %+v", got)
	}
}
