package errs

import "errors"

var (
	ErrInvalidQueueState = errors.New("invalid queue state")
	ErrJobNotFound       = errors.New("job not found")
)

var (
	ErrBadMagic       = errors.New("bad packet magic")
	ErrPacketTooLarge = errors.New("packet too large")
)
