package pcrindex

import "github.com/asticode/go-astikit"

// Package-global logger, following the teacher library's convention of
// injecting a logger only where it is genuinely needed (here: reporting
// non-fatal index-persistence failures) rather than threading one through
// every pure function.
var logger = astikit.AdaptStdLogger(nil)

// SetLogger overrides the package logger.
func SetLogger(l astikit.StdLogger) { logger = astikit.AdaptStdLogger(l) }
