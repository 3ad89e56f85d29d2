package model

// The Measurement struct contains measurements performed periodically
// while the download workers are loading the link. This structure is
// meant to be serialised as JSON and sent as a textual message on the
// live measurement stream.
type Measurement struct {
	// Elapsed is the number of seconds elapsed since the loaded
	// phase began.
	Elapsed float64 `json:"elapsed"`

	// AppInfo contains application level measurements.
	AppInfo *AppInfo `json:"app_info,omitempty"`

	// TCPInfo contains metrics measured using TCP_INFO instrumentation
	// on one of the download sockets. Only available on Linux.
	TCPInfo *TCPInfo `json:"tcp_info,omitempty"`
}

// AppInfo contains an application level measurement.
type AppInfo struct {
	// NumBytes is the number of bytes received so far by all the
	// download workers combined.
	NumBytes int64 `json:"num_bytes"`
}

// The TCPInfo struct contains information measured using TCP_INFO.
type TCPInfo struct {
	// SmoothedRTT is the kernel's smoothed RTT in milliseconds.
	SmoothedRTT float64 `json:"smoothed_rtt"`

	// RTTVar is the RTT variance in milliseconds.
	RTTVar float64 `json:"rtt_var"`
}
