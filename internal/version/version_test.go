// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"testing"

	"github.com/sapcc/go-bits/assert"
)

const validPayload = `{
	"id": 42,
	"name": "sha256:4444444444444444444444444444444444444444444444444444444444444444",
	"url": "https://api.github.com/users/example/packages/container/demo/versions/42",
	"package_html_url": "https://github.com/users/example/packages/container/package/demo",
	"html_url": "https://github.com/users/example/packages/container/demo/42",
	"created_at": "2026-01-01T00:00:00Z",
	"updated_at": "2026-01-02T00:00:00Z",
	"metadata": {
		"package_type": "container",
		"container": {"tags": ["v1", "latest"]}
	},
	"author": {"login": "example"}
}`

func TestDecodeValid(t *testing.T) {
	v, err := Decode([]byte(validPayload))
	if err != nil {
		t.Fatalf("unexpected error: %s", err.Error())
	}
	assert.DeepEqual(t, "id", v.ID, int32(42))
	assert.DeepEqual(t, "name", string(v.Name), "sha256:4444444444444444444444444444444444444444444444444444444444444444")
	assert.DeepEqual(t, "tags", v.Tags, []string{"v1", "latest"})
	if v.Extra["author"] == nil {
		t.Error("expected author to be preserved in Extra")
	}
}

func TestDecodeMissingTags(t *testing.T) {
	payload := `{
		"id": 1, "name": "sha256:5555555555555555555555555555555555555555555555555555555555555555",
		"url": "u", "package_html_url": "p", "html_url": "h",
		"created_at": "2026-01-01T00:00:00Z", "updated_at": "2026-01-01T00:00:00Z",
		"metadata": {"package_type": "container", "container": {}}
	}`
	_, err := Decode([]byte(payload))
	if err == nil {
		t.Fatal("expected an error for a payload missing metadata.container.tags")
	}
}

func TestDecodeNullTagsRejected(t *testing.T) {
	payload := `{
		"id": 1, "name": "sha256:6666666666666666666666666666666666666666666666666666666666666666",
		"url": "u", "package_html_url": "p", "html_url": "h",
		"created_at": "2026-01-01T00:00:00Z", "updated_at": "2026-01-01T00:00:00Z",
		"metadata": {"package_type": "container", "container": {"tags": null}}
	}`
	_, err := Decode([]byte(payload))
	if err == nil {
		t.Fatal("expected an error for metadata.container.tags being null")
	}
}

func TestDecodeNonIntegerID(t *testing.T) {
	payload := `{
		"id": 1.5, "name": "sha256:7777777777777777777777777777777777777777777777777777777777777777",
		"url": "u", "package_html_url": "p", "html_url": "h",
		"created_at": "2026-01-01T00:00:00Z", "updated_at": "2026-01-01T00:00:00Z",
		"metadata": {"package_type": "container", "container": {"tags": []}}
	}`
	_, err := Decode([]byte(payload))
	if err == nil {
		t.Fatal("expected an error for a non-integer id")
	}
}

func TestDecodeEmptyTagsIsValid(t *testing.T) {
	payload := `{
		"id": 1, "name": "sha256:8888888888888888888888888888888888888888888888888888888888888888",
		"url": "u", "package_html_url": "p", "html_url": "h",
		"created_at": "2026-01-01T00:00:00Z", "updated_at": "2026-01-01T00:00:00Z",
		"metadata": {"package_type": "container", "container": {"tags": []}}
	}`
	v, err := Decode([]byte(payload))
	if err != nil {
		t.Fatalf("unexpected error: %s", err.Error())
	}
	assert.DeepEqual(t, "tags", v.Tags, []string{})
}
