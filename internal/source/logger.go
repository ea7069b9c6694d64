package source

import "github.com/asticode/go-astikit"

var logger = astikit.AdaptStdLogger(nil)

// SetLogger overrides the package logger.
func SetLogger(l astikit.StdLogger) { logger = astikit.AdaptStdLogger(l) }
