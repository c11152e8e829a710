package connmgr

import "errors"

var (
	errShortRead = errors.New("disk read returned fewer bytes than requested")
)
