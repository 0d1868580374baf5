package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Manager struct {
	// counters
	CounterFrames         *prometheus.CounterVec
	CounterNeutralFrames  prometheus.Counter
	CounterDetectorErrors prometheus.Counter
	CounterRepetitions    *prometheus.CounterVec
	CounterFeedback       *prometheus.CounterVec
	CounterFeedbackRetain *prometheus.CounterVec
	CounterExercisesDone  prometheus.Counter
	CounterRequests       *prometheus.CounterVec
	CounterRequestPanics  prometheus.Counter

	// gauges
	GaugeActiveSessions prometheus.Gauge
	GaugeEventListeners prometheus.Gauge

	// histograms
	HistFrameDuration prometheus.Histogram
	HistRepDuration   prometheus.Histogram
	HistFormScore     prometheus.Histogram
}

func NewTestManager() *Manager {
	return NewManager("formcoach", "test", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("formcoach", "test", reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	counterFrames := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "frames",
		Help:      "The total number of processed pose frames",
	}, []string{"source"})
	counterNeutralFrames := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "neutral_frames",
		Help:      "Frames classified as neutral because key joints were not visible",
	})
	counterDetectorErrors := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "detector_errors",
		Help:      "The total number of pose detector stream errors",
	})
	counterRepetitions := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "repetitions",
		Help:      "The total number of completed repetitions",
	}, []string{"exercise", "quality"})
	counterFeedback := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "feedback_delivered",
		Help:      "The total number of delivered feedback messages",
	}, []string{"kind"})
	counterFeedbackRetain := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "feedback_retained",
		Help:      "Feedback messages not delivered, their repetitions stay cached",
	}, []string{"kind"})
	counterExercisesDone := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "exercises_completed",
		Help:      "The total number of completed exercises",
	})

	counterRequests := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "requests",
		Help:      "The total number of HTTP requests",
	}, []string{"method", "status"})
	counterRequestPanics := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request_panics",
		Help:      "The total number of recovered HTTP handler panics",
	})

	gaugeActiveSessions := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "active_sessions",
		Help:      "Current number of open sessions",
	})
	gaugeEventListeners := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "event_listeners",
		Help:      "Current number of connected feedback event listeners",
	})

	histFrameDuration := factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Buckets: []float64{
				0.00001, 0.000025, 0.00005, 0.0001, 0.00025,
				0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05,
			},
			Name: "frame_processing_seconds",
			Help: "Time spent processing a single frame",
		},
	)
	histRepDuration := factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Buckets:   []float64{0.3, 0.5, 0.75, 1, 1.5, 2, 3, 5, 8, 13},
			Name:      "repetition_duration_seconds",
			Help:      "Duration of completed repetitions in seconds",
		},
	)
	histFormScore := factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
			Name:      "form_score",
			Help:      "Form score of completed repetitions",
		},
	)

	return &Manager{
		CounterFrames:         counterFrames,
		CounterNeutralFrames:  counterNeutralFrames,
		CounterDetectorErrors: counterDetectorErrors,
		CounterRepetitions:    counterRepetitions,
		CounterFeedback:       counterFeedback,
		CounterFeedbackRetain: counterFeedbackRetain,
		CounterExercisesDone:  counterExercisesDone,
		CounterRequests:       counterRequests,
		CounterRequestPanics:  counterRequestPanics,
		GaugeActiveSessions:   gaugeActiveSessions,
		GaugeEventListeners:   gaugeEventListeners,
		HistFrameDuration:     histFrameDuration,
		HistRepDuration:       histRepDuration,
		HistFormScore:         histFormScore,
	}
}
