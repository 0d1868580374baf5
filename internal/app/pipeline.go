package app

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/ayusman/formcoach/internal/pose"
	"github.com/ayusman/formcoach/internal/session"
)

// SourceDetector labels frames read from a pose detector.
const SourceDetector = "detector"

// RunDetector streams frames from d into the session until ctx is done, the
// detector runs dry or the session ends. A start failure is returned; stream
// errors are logged and counted.
//
// Frames of exercises without a counter are skipped, so a detector can keep
// running while the user moves through the workout.
func (a *App) RunDetector(ctx context.Context, id string, d pose.Detector) error {
	if _, err := a.Session(id); err != nil {
		return err
	}

	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("start detector: %w", err)
	}
	defer func() {
		if err := d.Stop(); err != nil {
			log.WithError(err).WithField("session", id).Warn("failed to stop detector")
		}
	}()

	logger := log.WithField("session", id)
	logger.Info("detector pipeline started")
	defer logger.Info("detector pipeline stopped")

	results, errs := d.Results(), d.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			a.detectorError(id, err)

		case frame, ok := <-results:
			if !ok {
				a.drainErrors(id, errs)
				return nil
			}

			res, err := a.ProcessFrame(id, frame, SourceDetector)
			switch {
			case err == nil, errors.Is(err, session.ErrNoCounter):
			case errors.Is(err, ErrSessionNotFound), errors.Is(err, session.ErrClosed):
				return nil
			default:
				logger.WithError(err).Warn("failed to process frame")
			}
			if res.Rep != nil {
				logger.WithFields(log.Fields{
					"exercise": res.Exercise,
					"rep":      res.Rep.RepNumber,
					"quality":  res.Rep.Quality,
				}).Debug("repetition from detector")
			}
		}
	}
}

func (a *App) detectorError(id string, err error) {
	a.metrics.CounterDetectorErrors.Inc()
	log.WithError(err).WithField("session", id).Warn("pose detector error")
}

// drainErrors reports errors already buffered when the results end.
func (a *App) drainErrors(id string, errs <-chan error) {
	if errs == nil {
		return
	}
	for {
		select {
		case err, ok := <-errs:
			if !ok {
				return
			}
			a.detectorError(id, err)
		default:
			return
		}
	}
}
