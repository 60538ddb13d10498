// Copyright (c) 2025, The Shade Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLog(t *testing.T) {
	err := New("oops")
	assert.Equal(t, err, Log(err))
	assert.NoError(t, Log(nil))
}

func TestLog1(t *testing.T) {
	assert.Equal(t, 3, Log1(3, nil))
	assert.Equal(t, "a", Log1("a", New("oops")))
}

func TestMust(t *testing.T) {
	assert.NotPanics(t, func() { Must(nil) })
	assert.Panics(t, func() { Must(New("oops")) })
	assert.Equal(t, 5, Must1(5, nil))
}

func TestIgnore1(t *testing.T) {
	assert.Equal(t, 7, Ignore1(7, New("oops")))
}
