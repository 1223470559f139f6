package cdc

import "errors"

var (
	ErrSourceRead    = errors.New("source read failed")
	ErrIndexWrite    = errors.New("index write failed")
	ErrInvalidParams = errors.New("invalid chunking parameters")
	ErrUnknownDigest = errors.New("unknown digest")
	ErrTooManyBlocks = errors.New("block count overflows index header")
)
