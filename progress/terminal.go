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

package progress

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Terminal is a Factory that renders a simple "label: done/total"
// counter to an io.Writer, colored when the writer is a real terminal.
type Terminal struct {
	out io.Writer
}

// NewTerminal returns a Factory writing to out.
func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{out: out}
}

func (t *Terminal) New(label string) Bar {
	bar := &terminalBar{out: t.out, label: label}
	if f, ok := t.out.(interface{ Fd() uintptr }); ok {
		bar.colorize = isatty.IsTerminal(f.Fd())
	}
	return bar
}

type terminalBar struct {
	mu       sync.Mutex
	out      io.Writer
	label    string
	total    int
	done     int
	colorize bool
}

func (b *terminalBar) SetTotal(total int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.total = total
}

func (b *terminalBar) Add(delta int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.done += delta
	b.render()
}

func (b *terminalBar) Describe(label string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.label = label
	b.render()
}

func (b *terminalBar) render() {
	line := fmt.Sprintf("\r%s: %d/%d", b.label, b.done, b.total)
	if b.colorize {
		line = color.CyanString(line)
	}
	fmt.Fprint(b.out, line)
}

func (b *terminalBar) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	fmt.Fprintln(b.out)
}

var _ Factory = (*Terminal)(nil)
