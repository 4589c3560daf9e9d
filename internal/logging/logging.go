// Copyright (C) 2024 Arolla authors.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package logging is a minimal leveled wrapper around the standard
// library's log package. The compiler core logs only coarse-grained
// diagnostics (stage entry/exit, compile-session start/end); it has no
// need for structured fields, sinks, or sampling, so no third-party
// logging library is introduced here.
package logging

import (
	"log"
	"os"
)

// std is the package-level diagnostic sink, writing to stderr. Its
// output is gated by Verbose, which is off by default; call Enable to
// turn it on.
var std = log.New(os.Stderr, "arolla: ", log.Lmicroseconds)

// Verbose gates Debugf output. It is false by default so that
// compiling expressions in a hot path incurs no formatting cost.
var Verbose = false

// Debugf logs a diagnostic message if Verbose is set.
func Debugf(format string, args ...any) {
	if Verbose {
		std.Printf(format, args...)
	}
}

// Enable turns on verbose diagnostic logging.
func Enable() { Verbose = true }

// Disable turns off verbose diagnostic logging.
func Disable() { Verbose = false }
