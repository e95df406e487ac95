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

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/pborman/uuid"
	"github.com/urfave/cli/v2"

	"github.com/dagarchive/alter/secretsharing"
)

var listCandidatesCommand = &cli.Command{
	Name:  "list-candidates",
	Usage: "compute and print the removable closure of a set of seeds, without touching anything",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{Name: "seed", Usage: "a seed SWHID, repeatable"},
		&cli.BoolFlag{Name: "quiet", Usage: "suppress progress bars"},
	},
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return fail(exitUsage, "%v", err)
		}
		seeds, err := parseSeeds(c.StringSlice("seed"))
		if err != nil {
			return fail(exitUsage, "%v", err)
		}
		r, err := buildRemover(cfg, newProgressFactory(c))
		if err != nil {
			return fail(exitUsage, "%v", err)
		}

		ctx := context.Background()
		removableGraph, err := r.GetRemovable(ctx, seeds)
		if err != nil {
			return fail(exitFailure, "%v", err)
		}

		ids := removableGraph.RemovableSWHIDs()
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"object type", "swhid"})
		for _, id := range ids {
			table.Append([]string{id.ObjectType.String(), id.String()})
		}
		table.Render()
		fmt.Fprintf(stderr, "%s\n", color.GreenString("%d removable object(s)", len(ids)))
		return nil
	},
}

var removeCommand = &cli.Command{
	Name:  "remove",
	Usage: "remove the closure of a set of seeds: plan, seal a recovery bundle, then delete",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{Name: "seed", Usage: "a seed SWHID, repeatable"},
		&cli.StringFlag{Name: "bundle-path", Required: true, Usage: "path to write the recovery bundle to"},
		&cli.StringFlag{Name: "removal-identifier", Usage: "defaults to a random UUID"},
		&cli.StringFlag{Name: "reason", Usage: "free-text reason recorded in the bundle manifest"},
		&cli.DurationFlag{Name: "expire", Usage: "optional duration from now after which the bundle's secret sharing should be considered stale"},
		&cli.BoolFlag{Name: "yes", Usage: "skip the confirmation prompt"},
		&cli.BoolFlag{Name: "quiet", Usage: "suppress progress bars"},
	},
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return fail(exitUsage, "%v", err)
		}
		seeds, err := parseSeeds(c.StringSlice("seed"))
		if err != nil {
			return fail(exitUsage, "%v", err)
		}
		sharing, err := secretsharing.FromConfig(cfg.RecoveryBundles.SecretSharing)
		if err != nil {
			return fail(exitUsage, "%v", err)
		}

		removalIdentifier := c.String("removal-identifier")
		if removalIdentifier == "" {
			removalIdentifier = uuid.New()
		}

		r, err := buildRemover(cfg, newProgressFactory(c))
		if err != nil {
			return fail(exitUsage, "%v", err)
		}

		ctx := context.Background()
		removableGraph, err := r.GetRemovable(ctx, seeds)
		if err != nil {
			return fail(exitFailure, "%v", err)
		}
		n := len(removableGraph.RemovableSWHIDs())
		if n == 0 {
			return fail(exitUsage, "no objects are removable from the given seeds")
		}

		var expire *time.Time
		if d := c.Duration("expire"); d > 0 {
			t := timeNow().Add(d)
			expire = &t
		}

		if err := r.CreateRecoveryBundle(ctx, c.String("bundle-path"), removableGraph, removalIdentifier, sharing, c.String("reason"), expire); err != nil {
			return fail(exitFailure, "%v", err)
		}
		fmt.Fprintf(stderr, "%s\n", color.CyanString("recovery bundle written to %s", c.String("bundle-path")))

		if err := confirmRemoval(c, removalIdentifier, n); err != nil {
			return fail(exitUsage, "%v", err)
		}

		counters, err := r.Remove(ctx, c.String("bundle-path"), decryptionKeyProviderFromFlags(c))
		if err != nil {
			return fail(exitFailure, "%v", err)
		}
		fmt.Fprintf(stderr, "%s\n", color.GreenString(
			"removed: search=%d storage=%v journal=%d objstore=%d",
			counters.Search, counters.Storage, counters.Journal, counters.Objstore))
		return nil
	},
}

// timeNow is a thin indirection so tests could stub it; production code
// always calls the real clock.
func timeNow() time.Time { return time.Now() }
