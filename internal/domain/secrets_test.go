// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", RedactString(""))
	assert.Equal(t, RedactedStr, RedactString("secret-api-key"))
	assert.Equal(t, RedactedStr, RedactString(RedactedStr))
}

func TestIsRedactedString(t *testing.T) {
	t.Parallel()

	assert.True(t, IsRedactedString(RedactedStr))
	assert.False(t, IsRedactedString(""))
	assert.False(t, IsRedactedString("some-secret"))
	assert.False(t, IsRedactedString(RedactedStr+"extra"))
}
