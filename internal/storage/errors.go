package storage

import "errors"

var (
	ErrIndexNotFound     = errors.New("index not found")
	ErrBlobNotFound      = errors.New("remote blob not found")
	ErrVersionConflict   = errors.New("remote index version is newer or equal")
	ErrMirrorUnreachable = errors.New("remote mirror unreachable")
)
