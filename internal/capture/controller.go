package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp"

	"github.com/franckalain/mealscan/internal/config"
	apperrors "github.com/franckalain/mealscan/internal/errors"
	"github.com/franckalain/mealscan/internal/models"
)

const jpegMIME = "image/jpeg"

// Controller is the single owner of a capture device. It is safe for
// concurrent use.
type Controller struct {
	provider DeviceProvider
	cfg      config.CaptureConfig
	log      logrus.FieldLogger

	mu       sync.Mutex
	device   Device
	starting bool
	gen      uint64 // bumped by StopLiveFeed to abandon in-flight acquisitions
}

// NewController creates a controller drawing devices from provider.
func NewController(provider DeviceProvider, cfg config.CaptureConfig, log logrus.FieldLogger) *Controller {
	return &Controller{
		provider: provider,
		cfg:      cfg,
		log:      log,
	}
}

// StartLiveFeed acquires the camera. It blocks until access is granted,
// denied, or the device timeout passes.
func (c *Controller) StartLiveFeed(ctx context.Context) error {
	c.mu.Lock()
	if c.device != nil || c.starting {
		c.mu.Unlock()
		return apperrors.New(apperrors.ErrInvalidTransition, "live feed already started")
	}
	if c.provider == nil {
		c.mu.Unlock()
		return apperrors.New(apperrors.ErrDeviceUnavailable, "no capture device configured")
	}
	c.starting = true
	gen := c.gen
	c.mu.Unlock()

	if c.cfg.DeviceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.DeviceTimeout)
		defer cancel()
	}

	facing := Facing(c.cfg.Facing)
	if facing == "" {
		facing = FacingEnvironment
	}
	dev, err := c.provider.Acquire(ctx, facing)

	c.mu.Lock()
	defer c.mu.Unlock()
	stale := gen != c.gen
	if !stale {
		c.starting = false
	}

	if err != nil {
		c.log.WithError(err).Warn("camera unavailable")
		if apperrors.CodeOf(err) == apperrors.ErrDeviceUnavailable {
			return err
		}
		return apperrors.Wrap(apperrors.ErrDeviceUnavailable, "failed to acquire camera", err)
	}
	if stale {
		_ = dev.Close()
		return apperrors.New(apperrors.ErrDeviceUnavailable, "live feed stopped while starting")
	}

	c.device = dev
	c.log.WithField("facing", facing).Debug("live feed started")
	return nil
}

// StopLiveFeed releases the camera. It is safe to call at any time.
func (c *Controller) StopLiveFeed() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	c.starting = false
	if c.device == nil {
		return nil
	}
	err := c.device.Close()
	c.device = nil
	c.log.Debug("live feed stopped")
	if err != nil {
		return fmt.Errorf("failed to release camera: %w", err)
	}
	return nil
}

// Active reports whether a device is held.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.device != nil
}

// CaptureFrame freezes the current frame at native resolution and encodes
// it as JPEG.
func (c *Controller) CaptureFrame() (models.ImageBuffer, error) {
	c.mu.Lock()
	dev := c.device
	c.mu.Unlock()
	if dev == nil {
		return models.ImageBuffer{}, apperrors.New(apperrors.ErrNoActiveFeed, "no active live feed")
	}

	frame, err := dev.Frame()
	if err != nil {
		if apperrors.CodeOf(err) != apperrors.ErrInternal {
			return models.ImageBuffer{}, err
		}
		return models.ImageBuffer{}, apperrors.Wrap(apperrors.ErrNoActiveFeed, "failed to read frame", err)
	}

	buf, err := c.encode(frame, models.OriginCamera)
	if err != nil {
		return models.ImageBuffer{}, err
	}
	c.log.WithFields(logrus.Fields{
		"width":  buf.Width,
		"height": buf.Height,
		"bytes":  len(buf.Data),
	}).Debug("frame captured")
	return buf, nil
}

// ImportFile decodes an image file of any common format and normalizes it
// to the same JPEG shape as a captured frame. EXIF orientation is applied.
func (c *Controller) ImportFile(r io.Reader) (models.ImageBuffer, error) {
	limit := c.cfg.MaxImportBytes
	var data []byte
	var err error
	if limit > 0 {
		data, err = io.ReadAll(io.LimitReader(r, limit+1))
	} else {
		data, err = io.ReadAll(r)
	}
	if err != nil {
		return models.ImageBuffer{}, apperrors.Wrap(apperrors.ErrInvalidImage, "failed to read image", err)
	}
	if len(data) == 0 {
		return models.ImageBuffer{}, apperrors.New(apperrors.ErrInvalidImage, "image is empty")
	}
	if limit > 0 && int64(len(data)) > limit {
		return models.ImageBuffer{}, apperrors.New(apperrors.ErrInvalidImage,
			fmt.Sprintf("image exceeds %d bytes", limit))
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return models.ImageBuffer{}, apperrors.New(apperrors.ErrInvalidImage, "not an image: "+mt.String())
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return models.ImageBuffer{}, apperrors.Wrap(apperrors.ErrInvalidImage, "failed to decode image", err)
	}

	if dim := c.cfg.MaxImportDimension; dim > 0 {
		b := img.Bounds()
		if b.Dx() > dim || b.Dy() > dim {
			img = imaging.Fit(img, dim, dim, imaging.Lanczos)
		}
	}

	buf, err := c.encode(img, models.OriginImport)
	if err != nil {
		return models.ImageBuffer{}, err
	}
	c.log.WithFields(logrus.Fields{
		"source_type": mt.String(),
		"width":       buf.Width,
		"height":      buf.Height,
	}).Debug("image imported")
	return buf, nil
}

func (c *Controller) encode(img image.Image, origin models.ImageOrigin) (models.ImageBuffer, error) {
	quality := c.cfg.JPEGQuality
	if quality <= 0 {
		quality = 80
	}

	var out bytes.Buffer
	if err := imaging.Encode(&out, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return models.ImageBuffer{}, apperrors.Wrap(apperrors.ErrInvalidImage, "failed to encode image", err)
	}

	b := img.Bounds()
	return models.ImageBuffer{
		Data:     out.Bytes(),
		MIMEType: jpegMIME,
		Width:    b.Dx(),
		Height:   b.Dy(),
		Origin:   origin,
	}, nil
}
