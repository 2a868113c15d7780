// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package graph

import "fmt"

// SelfLinkError is returned by Link when asked to make a node its own parent.
type SelfLinkError struct {
	Digest string
}

func (e SelfLinkError) Error() string {
	return fmt.Sprintf("refusing to link %s to itself", e.Digest)
}

// ConflictingParentError is returned by Link when the child already has a
// different parent. In a well-formed repository this never happens: the
// three resolver passes are mutually exclusive by construction. When it does
// happen, the resolver surfaces it as GraphInconsistencyError.
type ConflictingParentError struct {
	ChildDigest    string
	ExistingParent string
	NewParent      string
}

func (e ConflictingParentError) Error() string {
	return fmt.Sprintf("version %s already has parent %s, cannot also link to %s",
		e.ChildDigest, e.ExistingParent, e.NewParent)
}

// GraphInconsistencyError wraps a ConflictingParentError encountered by the
// relationship resolver. It is fatal: the resolver cannot proceed once two
// passes disagree about who owns a child.
type GraphInconsistencyError struct {
	Inner error
}

func (e GraphInconsistencyError) Error() string {
	return "graph inconsistency: " + e.Inner.Error()
}

func (e GraphInconsistencyError) Unwrap() error {
	return e.Inner
}
