package flow

import "fmt"

// ConfigError reports a missing or empty required parameter, or a referenced
// path that does not exist. It carries the upstream step that is responsible
// for supplying the value so the operator knows where to fix it.
type ConfigError struct {
	Param string
	Hint  string
}

func (e *ConfigError) Error() string {
	if e.Hint == "" {
		return fmt.Sprintf("configuration: parameter %q is missing or empty", e.Param)
	}
	return fmt.Sprintf("configuration: parameter %q is missing or empty (supplied by %s)", e.Param, e.Hint)
}

// RangeError reports a frame range or row count that falls outside the
// bounds established by the video or the interval catalog. A RangeError
// aborts the current run before any artifact is modified.
type RangeError struct {
	Msg string
}

func (e *RangeError) Error() string { return "range: " + e.Msg }

// Rangef builds a RangeError with a formatted message.
func Rangef(format string, args ...any) *RangeError {
	return &RangeError{Msg: fmt.Sprintf(format, args...)}
}

// IntegrityError reports a sentinel token encountered where a consumer
// requires a pure numeric value.
type IntegrityError struct {
	Path  string
	Row   int
	Token string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity: %s row %d holds sentinel %q where a numeric value is required", e.Path, e.Row, e.Token)
}

// Anomaly records a non-finite orientation or velocity result that was
// recovered in place by routing the cell to OutOfRange. Anomalies never
// abort a run; they are retained for diagnostics.
type Anomaly struct {
	SegmentID  int
	IntervalID int
	RawAngle   float64
}

func (a Anomaly) String() string {
	return fmt.Sprintf("segment %d interval %d: non-finite result (raw angle %v)", a.SegmentID, a.IntervalID, a.RawAngle)
}
