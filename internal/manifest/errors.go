// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package manifest

import "fmt"

// InvalidJSONError is returned by Decode when a manifest payload cannot be
// parsed, or when it parses but violates the closed set of supported
// mediaType values.
type InvalidJSONError struct {
	Reason  string
	Payload string
}

// Error implements the builtin error interface. The payload is truncated so
// that a malformed, possibly huge, manifest does not flood the log.
func (e InvalidJSONError) Error() string {
	payload := e.Payload
	const maxLen = 200
	if len(payload) > maxLen {
		payload = payload[:maxLen] + "...(truncated)"
	}
	return fmt.Sprintf("invalid manifest JSON (%s): %s", e.Reason, payload)
}
