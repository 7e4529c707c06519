package exception

import "github.com/yanun0323/errors"

var (
	ErrStreamAuthFailed = errors.New("stream: authentication failed")
	ErrStreamSubFailed  = errors.New("stream: subscribe rejected")
)
