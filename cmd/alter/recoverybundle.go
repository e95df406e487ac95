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
	"encoding/hex"
	"fmt"
	"os"

	"github.com/cespare/cp"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"github.com/dagarchive/alter/config"
	"github.com/dagarchive/alter/recoverybundle"
	"github.com/dagarchive/alter/secretsharing"
	"github.com/dagarchive/alter/swhid"
)

// holderKeyFlags are the flags every subcommand needing the object
// decryption key shares.
var holderKeyFlags = []cli.Flag{
	&cli.StringSliceFlag{Name: "holder-key", Usage: "identifier=age-secret-key, repeatable"},
	&cli.StringSliceFlag{Name: "mnemonic", Usage: "a share mnemonic already known in plaintext, repeatable"},
}

var recoveryBundleCommand = &cli.Command{
	Name:  "recovery-bundle",
	Usage: "inspect, restore, resume, or roll over a recovery bundle",
	Subcommands: []*cli.Command{
		bundleInfoCommand,
		bundleExtractContentCommand,
		bundleRestoreCommand,
		bundleResumeRemovalCommand,
		bundleRecoverDecryptionKeyCommand,
		bundleRolloverCommand,
	},
}

var bundleInfoCommand = &cli.Command{
	Name:      "info",
	Usage:     "print a bundle's manifest metadata and share-holder listing",
	ArgsUsage: "<bundle-path>",
	Action: func(c *cli.Context) error {
		path := c.Args().First()
		if path == "" {
			return fail(exitUsage, "a bundle path is required")
		}
		bundle, err := recoverybundle.Open(path, nil)
		if err != nil {
			return fail(exitUsage, "%v", err)
		}
		defer bundle.Close()

		fmt.Printf("removal_identifier: %s\n", bundle.RemovalIdentifier())
		fmt.Printf("version:            %d\n", bundle.Version())
		fmt.Printf("created:            %s\n", bundle.Created())
		if reason := bundle.Reason(); reason != "" {
			fmt.Printf("reason:             %s\n", reason)
		}
		if expire := bundle.Expire(); expire != nil {
			fmt.Printf("expire:             %s\n", expire)
		}
		fmt.Printf("objects:            %d\n", len(bundle.SWHIDs()))

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"share holder", "encrypted share (truncated)"})
		for _, id := range bundle.ShareIDs() {
			secret, _ := bundle.EncryptedSecret(id)
			if len(secret) > 40 {
				secret = secret[:40] + "..."
			}
			table.Append([]string{id, secret})
		}
		table.Render()
		return nil
	},
}

var bundleExtractContentCommand = &cli.Command{
	Name:      "extract-content",
	Usage:     "decrypt and write a single content blob's raw bytes to a file",
	ArgsUsage: "<bundle-path> <content-swhid> <output-path>",
	Flags:     holderKeyFlags,
	Action: func(c *cli.Context) error {
		args := c.Args()
		if args.Len() != 3 {
			return fail(exitUsage, "extract-content takes exactly 3 arguments")
		}
		id, err := swhid.Parse(args.Get(1))
		if err != nil {
			return fail(exitUsage, "%v", err)
		}
		bundle, err := recoverybundle.Open(args.Get(0), decryptionKeyProviderFromFlags(c))
		if err != nil {
			return fail(exitUsage, "%v", err)
		}
		defer bundle.Close()

		out, err := os.Create(args.Get(2))
		if err != nil {
			return fail(exitUsage, "%v", err)
		}
		defer out.Close()
		if err := bundle.WriteContentData(id, out); err != nil {
			return fail(exitFailure, "%v", err)
		}
		fmt.Fprintf(stderr, "%s\n", color.GreenString("wrote %s to %s", id, args.Get(2)))
		return nil
	},
}

var bundleRestoreCommand = &cli.Command{
	Name:      "restore",
	Usage:     "replay every object in a bundle back into the configured restoration storage",
	ArgsUsage: "<bundle-path>",
	Flags:     append(append([]cli.Flag{}, holderKeyFlags...), &cli.BoolFlag{Name: "quiet"}),
	Action: func(c *cli.Context) error {
		path := c.Args().First()
		if path == "" {
			return fail(exitUsage, "a bundle path is required")
		}
		cfg, err := loadConfig(c)
		if err != nil {
			return fail(exitUsage, "%v", err)
		}
		storage, err := resolveRestorationStorage(cfg)
		if err != nil {
			return fail(exitUsage, "%v", err)
		}

		bundle, err := recoverybundle.Open(path, decryptionKeyProviderFromFlags(c))
		if err != nil {
			return fail(exitUsage, "%v", err)
		}
		defer bundle.Close()

		counters, err := bundle.Restore(context.Background(), storage)
		if err != nil {
			return fail(exitFailure, "%v", err)
		}
		for kind, n := range counters {
			fmt.Printf("%s: %d\n", kind, n)
		}
		return nil
	},
}

var bundleResumeRemovalCommand = &cli.Command{
	Name:      "resume-removal",
	Usage:     "resume deletion from a bundle written by a prior remove that did not complete",
	ArgsUsage: "<bundle-path>",
	Flags:     append(append([]cli.Flag{}, holderKeyFlags...), &cli.BoolFlag{Name: "yes"}, &cli.BoolFlag{Name: "quiet"}),
	Action: func(c *cli.Context) error {
		path := c.Args().First()
		if path == "" {
			return fail(exitUsage, "a bundle path is required")
		}
		cfg, err := loadConfig(c)
		if err != nil {
			return fail(exitUsage, "%v", err)
		}
		r, err := buildRemover(cfg, newProgressFactory(c))
		if err != nil {
			return fail(exitUsage, "%v", err)
		}
		ctx := context.Background()
		provider := decryptionKeyProviderFromFlags(c)
		if err := r.ResumeFromBundle(ctx, path, provider); err != nil {
			return fail(exitUsage, "%v", err)
		}
		if err := confirmRemoval(c, path, 0); err != nil {
			return fail(exitUsage, "%v", err)
		}
		counters, err := r.Remove(ctx, path, provider)
		if err != nil {
			return fail(exitFailure, "%v", err)
		}
		fmt.Fprintf(stderr, "%s\n", color.GreenString(
			"removed: search=%d storage=%v journal=%d objstore=%d",
			counters.Search, counters.Storage, counters.Journal, counters.Objstore))
		return nil
	},
}

var bundleRecoverDecryptionKeyCommand = &cli.Command{
	Name:      "recover-decryption-key",
	Usage:     "reconstruct and print a bundle's object decryption key from holder shares",
	ArgsUsage: "<bundle-path>",
	Flags:     holderKeyFlags,
	Action: func(c *cli.Context) error {
		path := c.Args().First()
		if path == "" {
			return fail(exitUsage, "a bundle path is required")
		}
		bundle, err := recoverybundle.Open(path, nil)
		if err != nil {
			return fail(exitUsage, "%v", err)
		}
		defer bundle.Close()

		holderKeys := parseHolderKeys(c.StringSlice("holder-key"))
		key, err := secretsharing.RecoverObjectDecryptionKey(bundle.Manifest().DecryptionKeyShares, holderKeys, c.StringSlice("mnemonic"))
		if err != nil {
			return fail(exitFailure, "%v", err)
		}
		fmt.Println(hex.EncodeToString(key))
		return nil
	},
}

var bundleRolloverCommand = &cli.Command{
	Name:      "rollover",
	Usage:     "re-split a bundle's object decryption key under a new holder configuration",
	ArgsUsage: "<bundle-path>",
	Flags: append(append([]cli.Flag{}, holderKeyFlags...),
		&cli.StringFlag{Name: "new-config", Required: true, Usage: "path to the YAML configuration holding the new secret_sharing group"},
		&cli.BoolFlag{Name: "keep-backup", Usage: "copy the bundle aside before rewriting it in place"},
	),
	Action: func(c *cli.Context) error {
		path := c.Args().First()
		if path == "" {
			return fail(exitUsage, "a bundle path is required")
		}
		newCfg, err := config.Load(c.String("new-config"))
		if err != nil {
			return fail(exitUsage, "%v", err)
		}
		newSharing, err := secretsharing.FromConfig(newCfg.RecoveryBundles.SecretSharing)
		if err != nil {
			return fail(exitUsage, "%v", err)
		}

		if c.Bool("keep-backup") {
			if err := cp.CopyFile(path+".bak", path); err != nil {
				return fail(exitUsage, "backing up %s: %v", path, err)
			}
		}

		bundle, err := recoverybundle.Open(path, decryptionKeyProviderFromFlags(c))
		if err != nil {
			return fail(exitUsage, "%v", err)
		}
		defer bundle.Close()

		if err := bundle.Rollover(newSharing); err != nil {
			return fail(exitFailure, "%v", err)
		}
		fmt.Fprintf(stderr, "%s\n", color.GreenString("rolled over %s to %d holder(s)", path, len(newSharing.ShareIDs())))
		return nil
	},
}
