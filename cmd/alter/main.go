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

// Command alter drives removal of objects from a content-addressed
// software archive: planning a removal, sealing the objects into an
// encrypted recovery bundle, and deleting them across every configured
// backend.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/urfave/cli/v2"
)

// stderr is Windows-safe: go-colorable strips or translates ANSI
// escapes color.RedString et al. emit on terminals that can't render
// them directly.
var stderr = colorable.NewColorableStderr()

// Exit codes, matched by every subcommand's Action return path:
// 0 success, 1 operator/usage error, 2 a removal or bundle operation
// failed partway and may have triggered a rollback.
const (
	exitSuccess = 0
	exitUsage   = 1
	exitFailure = 2
)

func main() {
	app := &cli.App{
		Name:  "alter",
		Usage: "remove objects from a content-addressed software archive",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the YAML configuration file (defaults to $SWH_CONFIG_FILENAME)",
			},
		},
		Commands: []*cli.Command{
			removeCommand,
			listCandidatesCommand,
			recoveryBundleCommand,
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintln(stderr, color.RedString("alter: %v", err))
	}
	cli.HandleExitCoder(err)
}

func fail(code int, format string, args ...interface{}) error {
	return cli.Exit(fmt.Sprintf(format, args...), code)
}
