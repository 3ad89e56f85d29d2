package model

import "time"

// Sample is the outcome of a single TCP connect-latency probe against
// one target. Exactly one of RTT and Error is meaningful.
type Sample struct {
	// Target is the host:port endpoint that was dialed.
	Target string `json:"target"`

	// RTT is the time the TCP three-way handshake took.
	RTT time.Duration `json:"rtt"`

	// Error is the dial error, when the connect attempt failed.
	Error string `json:"error,omitempty"`
}

// Failed reports whether the connect attempt failed. Failed samples
// carry no usable RTT and must not enter the latency statistics.
func (s Sample) Failed() bool {
	return s.Error != ""
}

// Millis returns the RTT in (fractional) milliseconds.
func (s Sample) Millis() float64 {
	return float64(s.RTT) / float64(time.Millisecond)
}
