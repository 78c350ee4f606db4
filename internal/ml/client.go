// Package ml sends captured images to a generative vision backend and turns
// its JSON answer into a validated nutrition estimate.
package ml

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/franckalain/mealscan/internal/config"
	apperrors "github.com/franckalain/mealscan/internal/errors"
	"github.com/franckalain/mealscan/internal/metrics"
	"github.com/franckalain/mealscan/internal/models"
)

// Recorder receives one metric per recognition call.
type Recorder interface {
	Record(m metrics.ExecutionMetric) error
}

// Client is stateless between calls and safe for concurrent use.
type Client struct {
	model    Model
	backend  string
	timeout  time.Duration
	recorder Recorder
	now      func() time.Time
	log      logrus.FieldLogger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) ClientOption {
	return func(c *Client) { c.recorder = r }
}

// WithClock replaces time.Now for capture timestamps.
func WithClock(fn func() time.Time) ClientOption {
	return func(c *Client) { c.now = fn }
}

// NewClient wraps a loaded model.
func NewClient(model Model, cfg config.MLConfig, log logrus.FieldLogger, opts ...ClientOption) *Client {
	c := &Client{
		model:   model,
		backend: cfg.Type,
		timeout: cfg.Timeout,
		now:     time.Now,
		log:     log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Recognize asks the backend to identify the food in a JPEG image. An
// estimate with IsFood false is returned as is; the caller decides what to
// do with it.
func (c *Client) Recognize(ctx context.Context, image []byte) (models.NutritionEstimate, error) {
	if len(image) == 0 {
		return models.NutritionEstimate{}, apperrors.New(apperrors.ErrInvalid, "image is empty")
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.model.Generate(ctx, Request{
		Image:       image,
		MIMEType:    "image/jpeg",
		Instruction: Instruction,
	})
	latency := time.Since(start)

	if err != nil {
		c.record(resp.Usage, latency, metrics.OutcomeUnavailable)
		c.log.WithError(err).WithField("backend", c.backend).Warn("recognition request failed")
		return models.NutritionEstimate{}, apperrors.Wrap(apperrors.ErrRecognitionUnavailable, "recognition request failed", err)
	}

	est, err := parseEstimate(resp.Text)
	if err != nil {
		c.record(resp.Usage, latency, metrics.OutcomeParseError)
		c.log.WithError(err).WithFields(logrus.Fields{
			"backend": c.backend,
			"payload": resp.Text,
		}).Warn("unusable recognition payload")
		return models.NutritionEstimate{}, apperrors.Wrap(apperrors.ErrRecognitionParse, "failed to parse recognition result", err)
	}

	est.CapturedAt = c.now()
	est.Time = est.CapturedAt.Format(models.TimeLayout)

	c.record(resp.Usage, latency, metrics.OutcomeOK)
	c.log.WithFields(logrus.Fields{
		"name":       est.Name,
		"calories":   est.Calories,
		"confidence": est.Confidence,
		"is_food":    est.IsFood,
		"latency_ms": latency.Milliseconds(),
	}).Info("image recognized")
	return est, nil
}

func (c *Client) record(u Usage, latency time.Duration, outcome string) {
	if c.recorder == nil {
		return
	}
	err := c.recorder.Record(metrics.ExecutionMetric{
		Backend:          c.backend,
		Model:            u.Model,
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		LatencyMS:        latency.Milliseconds(),
		Outcome:          outcome,
		Timestamp:        time.Now().UTC(),
	})
	if err != nil {
		c.log.WithError(err).Warn("failed to record recognition metric")
	}
}
