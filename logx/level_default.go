// Copyright (c) 2025, The Shade Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !debug

package logx

import "log/slog"

// UserLevel is the verbosity level selected for log output.
// Messages below this level are not printed. It defaults to
// [slog.LevelInfo], and to [slog.LevelDebug] when built with
// the debug tag.
var UserLevel = slog.LevelInfo
