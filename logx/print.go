// Copyright (c) 2025, The Shade Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package logx

import (
	"fmt"
	"log/slog"
	"os"
)

// Print functions print directly to [os.Stdout] when [UserLevel]
// permits the given level, for user-facing output that does not
// need slog's structured formatting.

func printIf(level slog.Level, a ...any) {
	if UserLevel > level {
		return
	}
	fmt.Fprintln(os.Stdout, a...)
}

func printfIf(level slog.Level, format string, a ...any) {
	if UserLevel > level {
		return
	}
	fmt.Fprintf(os.Stdout, format, a...)
}

// PrintlnDebug prints the given args to stdout at the debug level.
func PrintlnDebug(a ...any) { printIf(slog.LevelDebug, a...) }

// PrintfDebug formats and prints to stdout at the debug level.
func PrintfDebug(format string, a ...any) { printfIf(slog.LevelDebug, format, a...) }

// PrintlnInfo prints the given args to stdout at the info level.
func PrintlnInfo(a ...any) { printIf(slog.LevelInfo, a...) }

// PrintfInfo formats and prints to stdout at the info level.
func PrintfInfo(format string, a ...any) { printfIf(slog.LevelInfo, format, a...) }

// PrintlnWarn prints the given args to stdout at the warn level.
func PrintlnWarn(a ...any) { printIf(slog.LevelWarn, a...) }

// PrintfWarn formats and prints to stdout at the warn level.
func PrintfWarn(format string, a ...any) { printfIf(slog.LevelWarn, format, a...) }

// PrintlnError prints the given args to stdout at the error level.
func PrintlnError(a ...any) { printIf(slog.LevelError, a...) }

// PrintfError formats and prints to stdout at the error level.
func PrintfError(format string, a ...any) { printfIf(slog.LevelError, format, a...) }
