//go:build !linux
// +build !linux

package platformx

import (
	"github.com/m-lab/bloatprobe/logging"
)

func maybeEmitWarning() {
	logging.Logger.Warn("This platform is not officially supported. Loaded-phase TCP_INFO measurements will be unavailable.")
}
