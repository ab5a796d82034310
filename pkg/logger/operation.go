package logger

import (
	"time"
)

// Operation logs the lifecycle of a single import or reconciliation run
// with timing and a shared set of fields.
type Operation struct {
	logger    Logger
	name      string
	fields    Fields
	startTime time.Time
	now       func() time.Time
}

// StartOperation begins a timed operation and logs its start
func StartOperation(name string, logger Logger) *Operation {
	if logger == nil {
		logger = GetGlobalLogger()
	}

	op := &Operation{
		logger:    logger,
		name:      name,
		fields:    Fields{"operation": name},
		startTime: time.Now(),
		now:       time.Now,
	}

	op.logger.WithFields(op.fields).Debug("Starting operation")
	return op
}

// WithField adds a field to every subsequent line of the operation
func (op *Operation) WithField(key string, value interface{}) *Operation {
	op.fields[key] = value
	return op
}

// Step logs a named step within the operation
func (op *Operation) Step(step string, fields Fields) {
	op.logger.WithFields(op.fields).WithFields(fields).WithField("step", step).Debug("Operation step")
}

// Warning logs a recoverable problem, such as a file skipped during upload
func (op *Operation) Warning(message string, err error) {
	l := op.logger.WithFields(op.fields)
	if err != nil {
		l = l.WithError(err)
	}
	l.Warn(message)
}

// Done completes the operation. A non-nil err is logged at error level.
func (op *Operation) Done(err error, summary Fields) {
	l := op.logger.WithFields(op.fields).
		WithFields(summary).
		WithField("duration", op.now().Sub(op.startTime).String())

	if err != nil {
		l.WithError(err).WithField("status", "error").Error("Operation failed")
		return
	}
	l.WithField("status", "success").Info("Operation completed")
}

// Timed executes fn as an operation and logs its outcome
func Timed(name string, logger Logger, fn func() error) error {
	op := StartOperation(name, logger)
	err := fn()
	op.Done(err, nil)
	return err
}
