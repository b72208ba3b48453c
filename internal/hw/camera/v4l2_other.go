//go:build !linux

package camera

import (
	"context"
	"errors"
)

// Open always fails: video4linux exists only on Linux.
func (v *V4L2) Open(ctx context.Context) (Stream, error) {
	return nil, errors.New("v4l2 cameras are only supported on linux")
}
