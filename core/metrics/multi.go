package metrics

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordAlertTransition forwards the record to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordAlertTransition(ev AlertTransitionEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordAlertTransition(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordNotification forwards notification state changes.
func (m *MultiSink) RecordNotification(ev NotificationEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(NotificationRecorder); ok {
			if err := rec.RecordNotification(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordCandidateSet forwards ranking outcomes.
func (m *MultiSink) RecordCandidateSet(ev CandidateSetEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(CandidateRecorder); ok {
			if err := rec.RecordCandidateSet(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordPosition forwards accepted location updates.
func (m *MultiSink) RecordPosition(ev PositionEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(PositionRecorder); ok {
			if err := rec.RecordPosition(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
