package internal

import "errors"

var (
	ErrShortWrite = errors.New("short write")
)
