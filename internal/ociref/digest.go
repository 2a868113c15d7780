// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package ociref contains the content-addressed identifiers shared by every
// layer of the artifact graph engine: digests and the manifest references
// that point at them.
package ociref

import (
	"encoding/json"

	"github.com/opencontainers/go-digest"
)

// Digest is a content-addressed identifier of the form "sha256:<64 hex
// chars>". It is a thin wrapper around digest.Digest so that callers outside
// this package never need to import github.com/opencontainers/go-digest
// directly.
type Digest = digest.Digest

// ManifestRef is a reference to a manifest as embedded in another manifest,
// e.g. as an entry of "manifests" or "layers", or as the "subject" field.
// Fields beyond MediaType and Digest are preserved verbatim so that
// re-serializing a decoded manifest does not lose forward-compatible data.
type ManifestRef struct {
	MediaType string                     `json:"mediaType"`
	Digest    Digest                     `json:"digest,omitempty"`
	Extra     map[string]json.RawMessage `json:"-"`
}

// manifestRefFields lists the JSON keys consumed by the typed fields above;
// everything else goes into Extra.
var manifestRefFields = map[string]bool{
	"mediaType": true,
	"digest":    true,
}

// UnmarshalJSON implements json.Unmarshaler. It decodes the typed fields and
// stashes every other top-level key in Extra, so that unknown sibling fields
// survive a decode/re-encode round-trip.
func (r *ManifestRef) UnmarshalJSON(buf []byte) error {
	var raw map[string]json.RawMessage
	err := json.Unmarshal(buf, &raw)
	if err != nil {
		return err
	}

	if mt, ok := raw["mediaType"]; ok {
		if err := json.Unmarshal(mt, &r.MediaType); err != nil {
			return err
		}
	}
	if d, ok := raw["digest"]; ok && string(d) != "null" {
		if err := json.Unmarshal(d, &r.Digest); err != nil {
			return err
		}
	}

	extra := make(map[string]json.RawMessage, len(raw))
	for k, v := range raw {
		if !manifestRefFields[k] {
			extra[k] = v
		}
	}
	if len(extra) > 0 {
		r.Extra = extra
	}
	return nil
}

// MarshalJSON implements json.Marshaler, re-emitting the typed fields
// alongside whatever unknown fields were preserved during decoding.
func (r ManifestRef) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(r.Extra)+2)
	for k, v := range r.Extra {
		out[k] = v
	}

	mt, err := json.Marshal(r.MediaType)
	if err != nil {
		return nil, err
	}
	out["mediaType"] = mt

	if r.Digest != "" {
		d, err := json.Marshal(r.Digest)
		if err != nil {
			return nil, err
		}
		out["digest"] = d
	}

	return json.Marshal(out)
}
