// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package manifest decodes OCI and Docker distribution manifest payloads into
// a single tagged variant discriminated by mediaType, preserving every
// unknown field so that a decode/re-encode round-trip is lossless.
package manifest

import (
	"encoding/json"

	containermanifest "github.com/containers/image/v5/manifest"
	imagespecs "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/sapcc/ghcr-prune/internal/ociref"
)

// MediaTypes is the closed set of mediaType values this decoder accepts.
// The OCI variants are reused from github.com/opencontainers/image-spec and
// the Docker variants from github.com/containers/image/v5/manifest, the
// same libraries the mediaType discriminant was grounded on.
var MediaTypes = map[string]bool{
	imagespecs.MediaTypeImageManifest:            true, // oci.image.manifest.v1+json (single-arch)
	imagespecs.MediaTypeImageIndex:                true, // oci.image.index.v1+json (multi-arch)
	containermanifest.DockerV2Schema2MediaType:    true, // docker.distribution.manifest.v2+json (single-arch)
	containermanifest.DockerV2ListMediaType:        true, // docker.distribution.manifest.list.v2+json (multi-arch)
}

// MultiArchMediaTypes is the subset of MediaTypes whose "manifests" field is
// meaningful (image indexes / manifest lists).
var MultiArchMediaTypes = map[string]bool{
	imagespecs.MediaTypeImageIndex:          true,
	containermanifest.DockerV2ListMediaType: true,
}

// Manifest is the tagged variant of an OCI or Docker distribution manifest.
// Every variant shares the same optional fields (Layers, Manifests, Subject);
// which fields are semantically meaningful depends on MediaType. Unknown
// top-level fields are preserved in Extra.
type Manifest struct {
	MediaType string                     `json:"mediaType"`
	Layers    []ociref.ManifestRef       `json:"layers,omitempty"`
	Manifests []ociref.ManifestRef       `json:"manifests,omitempty"`
	Subject   *ociref.ManifestRef        `json:"subject,omitempty"`
	Extra     map[string]json.RawMessage `json:"-"`
}

var topLevelFields = map[string]bool{
	"mediaType": true,
	"layers":    true,
	"manifests": true,
	"subject":   true,
}

// Decode parses a manifest JSON payload into a Manifest. A nil payload, a
// payload that is not valid JSON, a payload missing "mediaType" (with the
// single exception handled by DecodeWithFallback), or a mediaType outside
// MediaTypes all produce InvalidJSONError.
func Decode(payload []byte) (Manifest, error) {
	if len(payload) == 0 {
		return Manifest{}, InvalidJSONError{Reason: "empty payload", Payload: ""}
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Manifest{}, InvalidJSONError{Reason: err.Error(), Payload: string(payload)}
	}

	mtRaw, ok := raw["mediaType"]
	if !ok {
		return Manifest{}, InvalidJSONError{Reason: "missing mediaType", Payload: string(payload)}
	}
	var mediaType string
	if err := json.Unmarshal(mtRaw, &mediaType); err != nil {
		return Manifest{}, InvalidJSONError{Reason: "mediaType is not a string", Payload: string(payload)}
	}
	if !MediaTypes[mediaType] {
		return Manifest{}, InvalidJSONError{Reason: "unsupported mediaType " + mediaType, Payload: string(payload)}
	}

	return decodeKnownMediaType(raw, mediaType, payload)
}

// DecodeWithFallback is like Decode, but when the payload has no "mediaType"
// field at all it assumes "application/vnd.oci.image.index.v1+json", per the
// registry gateway's documented fallback for responses that arrive without a
// disambiguating Content-Type header (see the Open Questions in the design
// notes: whether this default is correct across registries is unclear, but
// ghcr.io itself was observed to require it).
func DecodeWithFallback(payload []byte) (Manifest, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Manifest{}, InvalidJSONError{Reason: err.Error(), Payload: string(payload)}
	}
	if _, ok := raw["mediaType"]; !ok {
		return decodeKnownMediaType(raw, imagespecs.MediaTypeImageIndex, payload)
	}
	return Decode(payload)
}

func decodeKnownMediaType(raw map[string]json.RawMessage, mediaType string, payload []byte) (Manifest, error) {
	m := Manifest{MediaType: mediaType}

	if l, ok := raw["layers"]; ok && string(l) != "null" {
		if err := json.Unmarshal(l, &m.Layers); err != nil {
			return Manifest{}, InvalidJSONError{Reason: "invalid layers: " + err.Error(), Payload: string(payload)}
		}
	}
	if mf, ok := raw["manifests"]; ok && string(mf) != "null" {
		if err := json.Unmarshal(mf, &m.Manifests); err != nil {
			return Manifest{}, InvalidJSONError{Reason: "invalid manifests: " + err.Error(), Payload: string(payload)}
		}
	}
	if s, ok := raw["subject"]; ok && string(s) != "null" {
		var subject ociref.ManifestRef
		if err := json.Unmarshal(s, &subject); err != nil {
			return Manifest{}, InvalidJSONError{Reason: "invalid subject: " + err.Error(), Payload: string(payload)}
		}
		m.Subject = &subject
	}

	extra := make(map[string]json.RawMessage, len(raw))
	for k, v := range raw {
		if !topLevelFields[k] {
			extra[k] = v
		}
	}
	if len(extra) > 0 {
		m.Extra = extra
	}

	return m, nil
}

// Encode re-serializes a Manifest, restoring any unknown fields that were
// preserved during Decode. Used by the tag-deletion protocol's ghost-manifest
// clone, and for round-trip tests.
func Encode(m Manifest) ([]byte, error) {
	out := make(map[string]json.RawMessage, len(m.Extra)+4)
	for k, v := range m.Extra {
		out[k] = v
	}

	mt, err := json.Marshal(m.MediaType)
	if err != nil {
		return nil, err
	}
	out["mediaType"] = mt

	if m.Layers != nil {
		l, err := json.Marshal(m.Layers)
		if err != nil {
			return nil, err
		}
		out["layers"] = l
	}
	if m.Manifests != nil {
		mf, err := json.Marshal(m.Manifests)
		if err != nil {
			return nil, err
		}
		out["manifests"] = mf
	}
	if m.Subject != nil {
		s, err := json.Marshal(*m.Subject)
		if err != nil {
			return nil, err
		}
		out["subject"] = s
	}

	return json.Marshal(out)
}

// IsMultiArch reports whether m's mediaType is one of the index/list variants
// for which the Manifests field is semantically meaningful.
func (m Manifest) IsMultiArch() bool {
	return MultiArchMediaTypes[m.MediaType]
}

// Clone returns a deep-enough copy of m suitable for the tag-deletion
// protocol's ghost-manifest rewrite: mutating the clone's Layers/Manifests
// does not affect m.
func (m Manifest) Clone() Manifest {
	clone := m
	if m.Layers != nil {
		clone.Layers = append([]ociref.ManifestRef(nil), m.Layers...)
	}
	if m.Manifests != nil {
		clone.Manifests = append([]ociref.ManifestRef(nil), m.Manifests...)
	}
	return clone
}
