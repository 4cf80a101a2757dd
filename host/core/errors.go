package core

import (
	"errors"
)

var (
	ErrHostUnavailable = errors.New("background host unavailable")
	ErrSessionClosed   = errors.New("engine session already closed")
	ErrMailboxFull     = errors.New("coordinator mailbox full")
)
