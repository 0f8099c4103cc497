//go:build !linux

package unitstatus

import (
	"context"
	"errors"
)

var ErrUnsupported = errors.New("unitstatus: unsupported OS (linux only)")

func Lookup(ctx context.Context, unit string) (Status, error) {
	return Status{}, ErrUnsupported
}
