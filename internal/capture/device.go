// Package capture owns the camera device and turns live frames or imported
// files into the normalized JPEG buffers handed to recognition.
package capture

import (
	"context"
	"image"
)

// Facing is the preferred camera direction.
type Facing string

const (
	FacingEnvironment Facing = "environment" // rear camera
	FacingUser        Facing = "user"        // front camera
)

// Device is an acquired camera. Frame returns the most recent frame.
type Device interface {
	Frame() (image.Image, error)
	Close() error
}

// DeviceProvider grants camera access. Acquire may block until the user
// grants or denies permission.
type DeviceProvider interface {
	Acquire(ctx context.Context, facing Facing) (Device, error)
}
