package input

import "errors"

var (
	ErrUnknownInput   = errors.New("unknown input")
	ErrArityMismatch  = errors.New("handler does not match declared arity")
	ErrEmptyAction    = errors.New("action name cannot be empty")
	ErrNilOwner       = errors.New("binding owner cannot be nil")
	ErrKeymapFormat   = errors.New("unsupported keymap format")
	ErrKeymapBadEntry = errors.New("invalid keymap entry")
)
