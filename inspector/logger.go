package inspector

import "github.com/asticode/go-astikit"

var logger = astikit.AdaptStdLogger(nil)

// SetLogger overrides the package logger used for packet-processing and
// trend-file errors (report lines themselves go to the configured report
// writer, not the logger).
func SetLogger(l astikit.StdLogger) { logger = astikit.AdaptStdLogger(l) }
