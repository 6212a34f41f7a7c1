package logging

import "time"

// TimedOperation logs an operation once it finishes, with its latency
type TimedOperation struct {
	logger Logger
	msg    string
	start  time.Time
	fields []Field
}

// StartTimer begins timing msg
func StartTimer(logger Logger, msg string, fields ...Field) *TimedOperation {
	return &TimedOperation{logger: logger, msg: msg, start: time.Now(), fields: fields}
}

func (t *TimedOperation) finish(extra []Field) (time.Duration, []Field) {
	elapsed := time.Since(t.start)
	fields := make([]Field, 0, len(t.fields)+len(extra)+1)
	fields = append(append(append(fields, t.fields...), extra...), Latency(elapsed))
	return elapsed, fields
}

// End logs a successful operation at debug level
func (t *TimedOperation) End(extra ...Field) time.Duration {
	elapsed, fields := t.finish(extra)
	t.logger.Debug(t.msg, fields...)
	return elapsed
}

// EndError logs a failed operation at error level
func (t *TimedOperation) EndError(err error) time.Duration {
	elapsed, fields := t.finish([]Field{Error(err)})
	t.logger.Error(t.msg, fields...)
	return elapsed
}
