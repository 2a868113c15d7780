// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"testing"

	"github.com/sapcc/go-bits/assert"

	"github.com/sapcc/ghcr-prune/internal/manifest"
	"github.com/sapcc/ghcr-prune/internal/ociref"
	"github.com/sapcc/ghcr-prune/internal/version"
)

func TestClassifyMultiArch(t *testing.T) {
	n := &Node{Version: version.Version{Manifest: manifest.Manifest{
		MediaType: "application/vnd.oci.image.index.v1+json",
		Manifests: []ociref.ManifestRef{{MediaType: "application/vnd.oci.image.manifest.v1+json", Digest: "sha256:1111111111111111111111111111111111111111111111111111111111111111"}},
	}}}
	assert.DeepEqual(t, "type", Classify(n), ArtifactMultiArch)
}

func TestClassifySingleArch(t *testing.T) {
	n := &Node{Version: version.Version{Manifest: manifest.Manifest{
		MediaType: "application/vnd.oci.image.manifest.v1+json",
		Layers:    []ociref.ManifestRef{{MediaType: "application/vnd.oci.image.layer.v1.tar+gzip", Digest: "sha256:2222222222222222222222222222222222222222222222222222222222222222"}},
	}}}
	assert.DeepEqual(t, "type", Classify(n), ArtifactSingleArch)
}

func TestClassifyAttestationBySubject(t *testing.T) {
	subj := ociref.ManifestRef{MediaType: "application/vnd.oci.image.manifest.v1+json", Digest: "sha256:3333333333333333333333333333333333333333333333333333333333333333"}
	n := &Node{Version: version.Version{Manifest: manifest.Manifest{
		MediaType: "application/vnd.oci.image.manifest.v1+json",
		Layers:    []ociref.ManifestRef{{MediaType: "application/vnd.oci.image.layer.v1.tar+gzip"}},
		Subject:   &subj,
	}}}
	assert.DeepEqual(t, "type", Classify(n), ArtifactAttestation)
}

func TestClassifyAttestationByInTotoLayers(t *testing.T) {
	n := &Node{Version: version.Version{Manifest: manifest.Manifest{
		MediaType: "application/vnd.oci.image.manifest.v1+json",
		Layers:    []ociref.ManifestRef{{MediaType: "application/vnd.in-toto+json"}},
	}}}
	assert.DeepEqual(t, "type", Classify(n), ArtifactAttestation)
}

func TestClassifyAttestationByReferrersTag(t *testing.T) {
	n := &Node{Version: version.Version{
		Tags: []string{"sha256-4444444444444444444444444444444444444444444444444444444444444444"},
		Manifest: manifest.Manifest{
			MediaType: "application/vnd.oci.image.manifest.v1+json",
			Layers:    []ociref.ManifestRef{{MediaType: "application/vnd.oci.image.layer.v1.tar+gzip"}},
		},
	}}
	assert.DeepEqual(t, "type", Classify(n), ArtifactAttestation)
}

func TestClassifyUnknown(t *testing.T) {
	n := &Node{Version: version.Version{Manifest: manifest.Manifest{MediaType: "application/vnd.oci.image.manifest.v1+json"}}}
	assert.DeepEqual(t, "type", Classify(n), ArtifactUnknown)
}
