package session

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/ayusman/formcoach/internal/apperr"
)

func (s *Session) dispatchLoop() {
	defer s.workerWG.Done()
	for j := range s.jobs {
		s.deliver(j)
	}
}

// deliver sends one message. A delivered detailed message consumes the cached
// repetitions it covered; a count only marks its repetition as sent. Failures
// leave the cache untouched so the next detailed message carries the history.
func (s *Session) deliver(j job) {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.DispatchTimeout)
	err := s.dispatcher.Dispatch(ctx, j.msg)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	ev := Event{
		ExerciseIndex: j.index,
		Exercise:      j.msg.Exercise,
		Feedback:      j.msg.Kind,
		Rep:           &j.rep,
	}
	logger := log.WithFields(log.Fields{
		"session":  s.id,
		"exercise": j.msg.Exercise,
		"rep":      j.msg.RepNumber,
		"feedback": j.msg.Kind,
	})

	switch {
	case err != nil:
		logger.WithError(err).WithField("retryable", apperr.IsRetryable(err)).Warn("feedback not delivered, repetition stays cached")
		ev.Type = EventFeedbackRetained
		ev.Err = err
	case j.msg.Kind.Detailed():
		n := s.cache.DiscardThrough(j.seq)
		logger.WithField("discarded", n).Debug("feedback delivered")
		ev.Type = EventFeedbackSent
	default:
		s.cache.MarkSent(j.seq)
		ev.Type = EventFeedbackSent
	}
	s.emit(ev)
}
