// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import "errors"

// Kind classifies an error into one of a small number of buckets so
// callers can react with errors.Is instead of string matching.
type Kind string

const (
	KindConfig             Kind = "config"
	KindParse              Kind = "parse"
	KindNetwork            Kind = "network"
	KindTimeout            Kind = "timeout"
	KindNotFound           Kind = "not_found"
	KindConflict           Kind = "conflict"
	KindIO                 Kind = "io"
	KindInvariantViolated  Kind = "invariant_violated"
)

// Sentinel errors, one per Kind, meant to be wrapped with fmt.Errorf's
// %w verb at the point the error actually occurs.
var (
	ErrConfig            = errors.New("config error")
	ErrParse             = errors.New("parse error")
	ErrNetwork           = errors.New("network error")
	ErrTimeout           = errors.New("timeout")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrIO                = errors.New("io error")
	ErrInvariantViolated = errors.New("invariant violated")
)

// kindSentinels maps each Kind to its sentinel error for KindOf lookups.
var kindSentinels = map[Kind]error{
	KindConfig:            ErrConfig,
	KindParse:             ErrParse,
	KindNetwork:           ErrNetwork,
	KindTimeout:           ErrTimeout,
	KindNotFound:          ErrNotFound,
	KindConflict:          ErrConflict,
	KindIO:                ErrIO,
	KindInvariantViolated: ErrInvariantViolated,
}

// KindOf reports which Kind an error belongs to, if any, by walking its
// wrap chain against the sentinel set.
func KindOf(err error) (Kind, bool) {
	for kind, sentinel := range kindSentinels {
		if errors.Is(err, sentinel) {
			return kind, true
		}
	}
	return "", false
}
