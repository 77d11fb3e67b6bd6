// Package presence derives the displayed viewer count from the raw
// broker-reported connection count and the broadcast status.
package presence

import "github.com/vietstream/livechat/internal/chat"

// Estimator holds the two inputs of the displayed count. The displayed
// value is recomputed on every read and never stored, so it cannot
// drift from its inputs.
type Estimator struct {
	raw    int
	status chat.StreamStatus
	offset int
}

// NewEstimator builds an estimator with the given live offset.
func NewEstimator(offset int) *Estimator {
	return &Estimator{status: chat.StatusIdle, offset: offset}
}

// SetRaw records a broker-reported viewer count.
func (e *Estimator) SetRaw(count int) {
	if count < 0 {
		count = 0
	}
	e.raw = count
}

// SetStatus records the current broadcast status.
func (e *Estimator) SetStatus(status chat.StreamStatus) {
	e.status = status
}

// Raw returns the last broker-reported count.
func (e *Estimator) Raw() int {
	return e.raw
}

// Displayed returns the viewer count to show: raw plus the fixed offset
// while the broadcast is live, raw alone otherwise.
func (e *Estimator) Displayed() int {
	if e.status == chat.StatusLive {
		return e.raw + e.offset
	}
	return e.raw
}
