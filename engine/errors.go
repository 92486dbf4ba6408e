package engine

import "errors"

var (
	ErrDuplicateModule = errors.New("module already registered")
	ErrUnknownModule   = errors.New("unknown module")
	ErrStarted         = errors.New("engine already started")
	ErrNotStarted      = errors.New("engine not started")
)
