// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gilderr defines the error model shared by every Gildash entry
// point. A library call either returns a value or fails with a single
// *Error carrying one of the kinds below; foreign errors are wrapped once
// with the original preserved as the cause.
package gilderr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers that dispatch on failure class.
type Kind string

const (
	// KindValidation covers argument and pre-flight check failures.
	KindValidation Kind = "validation"
	// KindStore covers failures reading or mutating the backing store.
	KindStore Kind = "store"
	// KindParse covers source parsing failures.
	KindParse Kind = "parse"
	// KindExtract covers symbol/relation extraction failures.
	KindExtract Kind = "extract"
	// KindIndex covers failures escalating past per-file isolation
	// inside a full or incremental index run.
	KindIndex Kind = "index"
	// KindWatcher covers filesystem event subscription and delivery
	// failures. These are logged rather than thrown.
	KindWatcher Kind = "watcher"
	// KindSearch covers failures inside the re-export, heritage and
	// graph query paths.
	KindSearch Kind = "search"
	// KindSemantic covers semantic-bridge failures, including calling a
	// semantic operation when no bridge is configured.
	KindSemantic Kind = "semantic"
	// KindClosed is returned by gated operations after Close.
	KindClosed Kind = "closed"
	// KindClose aggregates the failures collected during Close.
	KindClose Kind = "close"
)

// Error is the single error type surfaced by the library.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the cause to errors.Is / errors.As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an error of the given kind with no cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to a foreign error. An *Error passes
// through unchanged so a failure keeps its original kind as it crosses
// library layers.
func Wrap(kind Kind, message string, cause error) *Error {
	if cause == nil {
		return New(kind, message)
	}
	var ge *Error
	if errors.As(cause, &ge) {
		return ge
	}
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// NewClose aggregates the failures collected during a close sequence into
// one error of kind close. Returns nil when causes is empty.
func NewClose(causes []error) *Error {
	if len(causes) == 0 {
		return nil
	}
	return &Error{
		Kind:    KindClose,
		Message: fmt.Sprintf("close completed with %d error(s)", len(causes)),
		Cause:   errors.Join(causes...),
	}
}

// IsKind reports whether err is (or wraps) an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind == kind
	}
	return false
}
