package job

import (
	"errors"
	"fmt"
	"time"
)

// RescheduleError is the recoverable-failure signal: a handler returns it
// when an upstream collaborator is throttling and suggested a retry delay.
// The executor re-enqueues the job after exactly Delay without touching
// the retry counter — throttling is not a failure of the job itself.
type RescheduleError struct {
	Delay time.Duration
}

// Error implements the error interface.
func (e *RescheduleError) Error() string {
	return fmt.Sprintf("job: reschedule after %s", e.Delay)
}

// Reschedule builds a RescheduleError carrying the given delay.
func Reschedule(delay time.Duration) error {
	return &RescheduleError{Delay: delay}
}

// AsReschedule unwraps err into a RescheduleError if it carries one.
func AsReschedule(err error) (*RescheduleError, bool) {
	var re *RescheduleError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
