package capture

import (
	"bytes"
	"context"
	"image"
	"sync"

	"github.com/disintegration/imaging"

	apperrors "github.com/franckalain/mealscan/internal/errors"
)

// RemoteFeed is a camera whose frames are pushed by a remote client, such
// as a browser streaming getUserMedia snapshots over a WebSocket. The client
// grants access by sending its first frame and refuses it with Deny.
type RemoteFeed struct {
	mu     sync.Mutex
	frame  []byte
	facing Facing
	denied bool
	closed bool
	held   uint64 // generation of the device currently handed out, 0 if none
	gen    uint64
	notify chan struct{}
}

// NewRemoteFeed creates a feed with no frames.
func NewRemoteFeed() *RemoteFeed {
	return &RemoteFeed{notify: make(chan struct{})}
}

// Push stores the latest encoded frame (JPEG, PNG or WebP).
func (f *RemoteFeed) Push(frame []byte) {
	if len(frame) == 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.frame = frame
	f.broadcast()
}

// Deny records that the client refused camera access. The next pending or
// future Acquire fails.
func (f *RemoteFeed) Deny() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.denied = true
	f.frame = nil
	f.broadcast()
}

// Close ends the feed. Waiting and future acquisitions fail.
func (f *RemoteFeed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.frame = nil
	f.held = 0
	f.broadcast()
}

// Facing returns the direction requested by the last Acquire.
func (f *RemoteFeed) Facing() Facing {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.facing
}

// Acquire waits for the first frame, a denial, or ctx.
func (f *RemoteFeed) Acquire(ctx context.Context, facing Facing) (Device, error) {
	f.mu.Lock()
	f.facing = facing
	f.mu.Unlock()

	for {
		f.mu.Lock()
		switch {
		case f.closed:
			f.mu.Unlock()
			return nil, apperrors.New(apperrors.ErrDeviceUnavailable, "camera feed closed")
		case f.denied:
			f.denied = false
			f.mu.Unlock()
			return nil, apperrors.New(apperrors.ErrDeviceUnavailable, "camera access denied")
		case f.frame != nil:
			f.gen++
			f.held = f.gen
			dev := &remoteDevice{feed: f, gen: f.gen}
			f.mu.Unlock()
			return dev, nil
		}
		wait := f.notify
		f.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return nil, apperrors.Wrap(apperrors.ErrDeviceUnavailable, "timed out waiting for camera", ctx.Err())
		}
	}
}

// broadcast must be called with f.mu held.
func (f *RemoteFeed) broadcast() {
	close(f.notify)
	f.notify = make(chan struct{})
}

type remoteDevice struct {
	feed *RemoteFeed
	gen  uint64
}

func (d *remoteDevice) Frame() (image.Image, error) {
	d.feed.mu.Lock()
	if d.feed.held != d.gen {
		d.feed.mu.Unlock()
		return nil, apperrors.New(apperrors.ErrNoActiveFeed, "camera released")
	}
	frame := d.feed.frame
	d.feed.mu.Unlock()

	if frame == nil {
		return nil, apperrors.New(apperrors.ErrNoActiveFeed, "no frame received")
	}
	img, err := imaging.Decode(bytes.NewReader(frame), imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidImage, "failed to decode frame", err)
	}
	return img, nil
}

// Close drops the current frame so a restarted feed waits for fresh ones.
func (d *remoteDevice) Close() error {
	d.feed.mu.Lock()
	defer d.feed.mu.Unlock()
	if d.feed.held == d.gen {
		d.feed.held = 0
		d.feed.frame = nil
	}
	return nil
}
