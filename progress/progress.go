// Copyright 2021 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package progress abstracts the progress-bar reporting used by the
// inventory builder, removability analysis, and bundle writer, so tests
// and non-interactive callers can swap in a no-op.
package progress

// Bar reports progress of a long-running, countable operation.
type Bar interface {
	// SetTotal declares (or revises) the expected total count.
	SetTotal(total int)
	// Add advances the bar by delta.
	Add(delta int)
	// Describe sets a short label shown alongside the bar.
	Describe(label string)
	// Close finalizes the bar's output.
	Close()
}

// Factory creates a Bar for a named phase.
type Factory interface {
	New(label string) Bar
}

// noop is the Factory/Bar used when terminal interaction is out of scope
// (CLI is the only caller that wires a real one).
type noop struct{}

func (noop) New(string) Bar { return noop{} }

func (noop) SetTotal(int)    {}
func (noop) Add(int)         {}
func (noop) Describe(string) {}
func (noop) Close()          {}

// Noop is a Factory that discards all progress reporting.
var Noop Factory = noop{}
