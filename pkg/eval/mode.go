// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package eval

import (
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Mode of execution of a Plan.
type Mode int

//go:generate go tool enumer -type=Mode -trimprefix=Mode -output=gen_mode_enumer.go mode.go

const (
	// ModeEager executes each group as soon as it is registered.
	ModeEager Mode = iota

	// ModeDeferred queues the registered groups, and only executes them on Plan.Execute.
	ModeDeferred
)

// LAZYGRAPH_EVAL_MODE is the environment variable with the default Mode for DefaultPlan.
//
// Valid values are "eager" and "deferred" (case-insensitive). If not set, ModeEager is used.
const LAZYGRAPH_EVAL_MODE = "LAZYGRAPH_EVAL_MODE"

// DefaultMode is the mode used by DefaultPlan if LAZYGRAPH_EVAL_MODE is not set.
var DefaultMode = ModeEager

// ParseMode converts a mode name ("eager" or "deferred", case-insensitive) to a Mode.
func ParseMode(name string) (Mode, error) {
	mode, err := ModeString(strings.TrimSpace(name))
	if err != nil {
		return ModeEager, errors.Wrapf(err, "invalid evaluation mode %q, valid values are %q", name, ModeStrings())
	}
	return mode, nil
}

// ModeFromEnv returns the mode configured in LAZYGRAPH_EVAL_MODE, or DefaultMode if it is not set.
func ModeFromEnv() (Mode, error) {
	config, found := os.LookupEnv(LAZYGRAPH_EVAL_MODE)
	if !found || config == "" {
		return DefaultMode, nil
	}
	mode, err := ParseMode(config)
	if err != nil {
		return DefaultMode, errors.WithMessagef(err, "environment variable %s", LAZYGRAPH_EVAL_MODE)
	}
	return mode, nil
}
