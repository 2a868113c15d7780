// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package version decodes GitHub Packages API version payloads into a
// strictly typed record, with the same forward-compatible unknown-field
// passthrough discipline as package manifest.
package version

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/sapcc/ghcr-prune/internal/manifest"
	"github.com/sapcc/ghcr-prune/internal/ociref"
)

// InvalidJSONError is returned by Decode when a version payload is malformed
// or violates the field-typing contract.
type InvalidJSONError struct {
	Reason  string
	Payload string
}

func (e InvalidJSONError) Error() string {
	payload := e.Payload
	const maxLen = 200
	if len(payload) > maxLen {
		payload = payload[:maxLen] + "...(truncated)"
	}
	return fmt.Sprintf("invalid version JSON (%s): %s", e.Reason, payload)
}

// Version is a single entry in a GitHub package repository, identified by
// (ID, digest, tag-set, manifest). Tags live in metadata.container.tags on
// the wire but are surfaced as a plain field here. The Manifest is decoded
// separately (the caller fetches it from the registry gateway) and attached
// before the version is handed to the forest builder; a freshly decoded
// Version carries a zero Manifest until that happens.
type Version struct {
	ID             int32
	Name           ociref.Digest // the digest; "name" on the wire
	URL            string
	PackageHTMLURL string
	HTMLURL        string
	CreatedAt      string
	UpdatedAt      string
	Tags           []string
	Manifest       manifest.Manifest

	Extra map[string]json.RawMessage
}

type wireMetadataContainer struct {
	Tags []string `json:"tags"`
}

type wireMetadata struct {
	PackageType string                 `json:"package_type"`
	Container   wireMetadataContainer `json:"container"`
}

var topLevelFields = map[string]bool{
	"id":               true,
	"name":             true,
	"url":              true,
	"package_html_url": true,
	"html_url":         true,
	"created_at":       true,
	"updated_at":       true,
	"metadata":         true,
}

// Decode parses a single GitHub Packages API version payload. It does not
// decode the manifest; that is fetched separately via the registry gateway
// and attached by the caller.
func Decode(payload []byte) (Version, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Version{}, InvalidJSONError{Reason: err.Error(), Payload: string(payload)}
	}

	v := Version{}

	idRaw, ok := raw["id"]
	if !ok {
		return Version{}, InvalidJSONError{Reason: "missing id", Payload: string(payload)}
	}
	var idFloat float64
	if err := json.Unmarshal(idRaw, &idFloat); err != nil {
		return Version{}, InvalidJSONError{Reason: "id is not a number", Payload: string(payload)}
	}
	if idFloat != math.Trunc(idFloat) || idFloat < math.MinInt32 || idFloat > math.MaxInt32 {
		return Version{}, InvalidJSONError{Reason: "id is not a signed 32-bit integer", Payload: string(payload)}
	}
	v.ID = int32(idFloat)

	for field, dest := range map[string]*string{
		"name":             (*string)(&v.Name),
		"url":              &v.URL,
		"package_html_url": &v.PackageHTMLURL,
		"html_url":         &v.HTMLURL,
		"created_at":       &v.CreatedAt,
		"updated_at":       &v.UpdatedAt,
	} {
		r, ok := raw[field]
		if !ok {
			return Version{}, InvalidJSONError{Reason: "missing " + field, Payload: string(payload)}
		}
		if err := json.Unmarshal(r, dest); err != nil {
			return Version{}, InvalidJSONError{Reason: field + " is not a string", Payload: string(payload)}
		}
	}

	metaRaw, ok := raw["metadata"]
	if !ok {
		return Version{}, InvalidJSONError{Reason: "missing metadata", Payload: string(payload)}
	}
	var meta wireMetadata
	// metadata.container.tags must decode as []string; nil/non-array must fail
	// rather than silently becoming an empty slice, so decode into a raw
	// intermediate first.
	var metaRawFields map[string]json.RawMessage
	if err := json.Unmarshal(metaRaw, &metaRawFields); err != nil {
		return Version{}, InvalidJSONError{Reason: "metadata is not an object", Payload: string(payload)}
	}
	if pt, ok := metaRawFields["package_type"]; ok {
		if err := json.Unmarshal(pt, &meta.PackageType); err != nil {
			return Version{}, InvalidJSONError{Reason: "metadata.package_type is not a string", Payload: string(payload)}
		}
	} else {
		return Version{}, InvalidJSONError{Reason: "missing metadata.package_type", Payload: string(payload)}
	}
	containerRaw, ok := metaRawFields["container"]
	if !ok {
		return Version{}, InvalidJSONError{Reason: "missing metadata.container", Payload: string(payload)}
	}
	var containerRawFields map[string]json.RawMessage
	if err := json.Unmarshal(containerRaw, &containerRawFields); err != nil {
		return Version{}, InvalidJSONError{Reason: "metadata.container is not an object", Payload: string(payload)}
	}
	tagsRaw, ok := containerRawFields["tags"]
	if !ok || string(tagsRaw) == "null" {
		return Version{}, InvalidJSONError{Reason: "metadata.container.tags is missing or null", Payload: string(payload)}
	}
	if err := json.Unmarshal(tagsRaw, &meta.Container.Tags); err != nil {
		return Version{}, InvalidJSONError{Reason: "metadata.container.tags is not an array of strings", Payload: string(payload)}
	}
	v.Tags = meta.Container.Tags
	if v.Tags == nil {
		v.Tags = []string{}
	}

	extra := make(map[string]json.RawMessage, len(raw))
	for k, val := range raw {
		if !topLevelFields[k] {
			extra[k] = val
		}
	}
	if len(extra) > 0 {
		v.Extra = extra
	}

	return v, nil
}
