package progress

import "go.uber.org/zap"

// LogSink mirrors progress events into the structured log.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a zap logger to the Sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs one event with structured fields.
func (s *LogSink) Consume(evt Event) {
	fields := []zap.Field{
		zap.String("run_id", evt.RunID.String()),
		zap.String("stage", string(evt.Stage)),
	}
	if evt.CIK10 != "" {
		fields = append(fields, zap.String("cik", evt.CIK10))
	}
	if evt.AccessionNo != "" {
		fields = append(fields, zap.String("accession", evt.AccessionNo))
	}
	if evt.FilingDate != "" {
		fields = append(fields, zap.String("filing_date", evt.FilingDate))
	}
	if evt.Files > 0 {
		fields = append(fields, zap.Int("files", evt.Files))
	}
	if evt.Note != "" {
		fields = append(fields, zap.String("note", evt.Note))
	}
	if evt.Stage == StageFilingFail {
		s.logger.Warn("progress event", fields...)
		return
	}
	s.logger.Info("progress event", fields...)
}
