// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

// RedactedStr is the placeholder shown wherever a credential would appear in
// logs or diagnostic output.
const RedactedStr = "<redacted>"

// RedactString replaces a non-empty secret with the redaction placeholder.
func RedactString(s string) string {
	if s == "" {
		return ""
	}
	return RedactedStr
}

// IsRedactedString reports whether a value is the redaction placeholder, so
// round-tripped config updates never overwrite a real secret with it.
func IsRedactedString(value string) bool {
	return value == RedactedStr
}
