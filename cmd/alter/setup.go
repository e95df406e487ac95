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
	"fmt"
	"strings"

	"github.com/peterh/liner"
	"github.com/urfave/cli/v2"

	"github.com/dagarchive/alter/backendfactory"
	"github.com/dagarchive/alter/config"
	"github.com/dagarchive/alter/progress"
	"github.com/dagarchive/alter/recoverybundle"
	"github.com/dagarchive/alter/remover"
	"github.com/dagarchive/alter/secretsharing"
	"github.com/dagarchive/alter/storagebackend"
	"github.com/dagarchive/alter/swhid"
)

// loadConfig resolves the -config flag, falling back to
// config.LoadFromEnv the same way geth falls back to its default
// datadir when --datadir is not given.
func loadConfig(c *cli.Context) (*config.Config, error) {
	if path := c.String("config"); path != "" {
		return config.Load(path)
	}
	return config.LoadFromEnv()
}

// newProgressFactory returns a terminal progress factory unless -quiet
// was passed.
func newProgressFactory(c *cli.Context) progress.Factory {
	if c.Bool("quiet") {
		return progress.Noop
	}
	return progress.NewTerminal(stderr)
}

// buildRemover wires every backend named in cfg into a remover.Remover,
// the CLI-facing equivalent of what remover_test.go does by hand for
// each collaborator fake.
func buildRemover(cfg *config.Config, progressFactory progress.Factory) (*remover.Remover, error) {
	graph, err := backendfactory.Graph(cfg.Graph)
	if err != nil {
		return nil, err
	}
	storage, err := backendfactory.Storage(cfg.Storage)
	if err != nil {
		return nil, err
	}
	var restoration storagebackend.Interface
	if cfg.RestorationStorage.Cls != "" {
		restoration, err = backendfactory.Storage(cfg.RestorationStorage)
		if err != nil {
			return nil, err
		}
	}

	r := remover.New(graph, storage, restoration, progressFactory)

	if r.Searches, err = backendfactory.Search(cfg.RemovalSearches); err != nil {
		return nil, err
	}
	if r.Storages, err = backendfactory.Storages(cfg.RemovalStorages); err != nil {
		return nil, err
	}
	if r.Objstorages, err = backendfactory.Objstorages(cfg.RemovalObjstorages); err != nil {
		return nil, err
	}
	if r.Journals, err = backendfactory.Journals(cfg.RemovalJournals); err != nil {
		return nil, err
	}
	return r, nil
}

// parseSeeds parses a list of SWHID text forms, failing loudly on the
// first malformed one rather than silently skipping it.
func parseSeeds(texts []string) ([]swhid.SWHID, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("at least one -seed is required")
	}
	seeds := make([]swhid.SWHID, 0, len(texts))
	for _, t := range texts {
		id, err := swhid.Parse(t)
		if err != nil {
			return nil, fmt.Errorf("parsing seed %q: %w", t, err)
		}
		seeds = append(seeds, id)
	}
	return seeds, nil
}

// decryptionKeyProviderFromFlags builds a recoverybundle.DecryptionKeyProvider
// out of the -holder-key (id=secretkey) and -mnemonic flags shared by every
// recovery-bundle subcommand that needs the object decryption key.
func decryptionKeyProviderFromFlags(c *cli.Context) recoverybundle.DecryptionKeyProvider {
	holderKeys := parseHolderKeys(c.StringSlice("holder-key"))
	mnemonics := c.StringSlice("mnemonic")
	return func(m *recoverybundle.Manifest) ([]byte, error) {
		key, err := secretsharing.RecoverObjectDecryptionKey(m.DecryptionKeyShares, holderKeys, mnemonics)
		if err != nil {
			return nil, err
		}
		return key, nil
	}
}

// parseHolderKeys turns "identifier=secretkey" pairs into HolderKeys,
// skipping anything malformed rather than aborting the whole recovery
// attempt over one bad entry.
func parseHolderKeys(pairs []string) []secretsharing.HolderKey {
	var out []secretsharing.HolderKey
	for _, pair := range pairs {
		idx := strings.IndexByte(pair, '=')
		if idx < 0 {
			continue
		}
		out = append(out, secretsharing.HolderKey{
			Identifier: pair[:idx],
			SecretKey:  pair[idx+1:],
		})
	}
	return out
}

// resolveRestorationStorage picks the configured restoration storage,
// falling back to the primary archive storage when none is set
// (a standalone deployment restoring into the same store it removed
// from).
func resolveRestorationStorage(cfg *config.Config) (storagebackend.Interface, error) {
	if cfg.RestorationStorage.Cls != "" {
		return backendfactory.Storage(cfg.RestorationStorage)
	}
	return backendfactory.Storage(cfg.Storage)
}

// confirmRemoval prompts the operator on the terminal before an
// irreversible deletion proceeds, unless -yes was passed.
func confirmRemoval(c *cli.Context, removalIdentifier string, n int) error {
	if c.Bool("yes") {
		return nil
	}
	line := liner.NewLiner()
	defer line.Close()
	prompt := fmt.Sprintf("about to remove %d object(s) under removal %q, proceed? [y/N] ", n, removalIdentifier)
	answer, err := line.Prompt(prompt)
	if err != nil {
		return fmt.Errorf("reading confirmation: %w", err)
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	if answer != "y" && answer != "yes" {
		return fmt.Errorf("removal aborted by operator")
	}
	return nil
}
