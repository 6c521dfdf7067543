// Package audit provides a fire-and-forget sink for decision records.
package audit

import (
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Record is one decision record accepted by the sink
type Record struct {
	Component  string    `json:"component"` // authn, authz, netseg
	IdentityID string    `json:"identity_id,omitempty"`
	SegmentID  string    `json:"segment_id,omitempty"`
	Subject    string    `json:"subject"` // event id, resource, or traffic type
	Allow      bool      `json:"allow"`
	Confidence float64   `json:"confidence"`
	Reason     string    `json:"reason"`
	RiskScore  float64   `json:"risk_score,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Sink accepts decision records without blocking the request path
type Sink interface {
	Submit(record Record)
	Close()
}

// LogSink drains records to a structured logger on a background
// goroutine. Submit never blocks: when the buffer is full the record
// is dropped and a drop counter incremented.
type LogSink struct {
	logger  *logrus.Logger
	records chan Record
	done    chan struct{}
	dropped atomic.Uint64
}

// NewLogSink creates and starts a log-backed audit sink
func NewLogSink(logger *logrus.Logger, buffer int) *LogSink {
	if logger == nil {
		logger = logrus.New()
	}
	if buffer <= 0 {
		buffer = 256
	}
	sink := &LogSink{
		logger:  logger,
		records: make(chan Record, buffer),
		done:    make(chan struct{}),
	}
	go sink.drain()
	return sink
}

// Submit enqueues a record, dropping it if the buffer is full
func (s *LogSink) Submit(record Record) {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	select {
	case s.records <- record:
	default:
		s.dropped.Add(1)
	}
}

// Dropped reports how many records were discarded on a full buffer.
func (s *LogSink) Dropped() uint64 {
	return s.dropped.Load()
}

// Close drains remaining records and stops the sink
func (s *LogSink) Close() {
	close(s.records)
	<-s.done
	if n := s.dropped.Load(); n > 0 {
		s.logger.WithField("dropped", n).Warn("audit records dropped on full buffer")
	}
}

func (s *LogSink) drain() {
	defer close(s.done)
	for record := range s.records {
		outcome := "deny"
		if record.Allow {
			outcome = "allow"
		}
		s.logger.WithFields(logrus.Fields{
			"component":  record.Component,
			"identity":   record.IdentityID,
			"segment":    record.SegmentID,
			"subject":    record.Subject,
			"outcome":    outcome,
			"confidence": record.Confidence,
			"risk":       record.RiskScore,
			"reason":     record.Reason,
		}).Info("decision")
	}
}

// NopSink discards all records. Used when auditing is disabled.
type NopSink struct{}

func (NopSink) Submit(Record) {}
func (NopSink) Close()        {}
