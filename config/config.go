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

// Package config loads the YAML configuration file located by the
// SWH_CONFIG_FILENAME environment variable, exposing the sub-dictionaries
// the remover orchestrator and CLI need to construct their collaborators.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// BackendConfig names a collaborator implementation and its
// implementation-specific options, e.g.:
//
//	cls: leveldb
//	path: /var/lib/alter/storage
type BackendConfig struct {
	Cls     string                 `yaml:"cls"`
	Options map[string]interface{} `yaml:",inline"`
}

// SecretSharingGroupConfig is one group of a secret-sharing scheme.
type SecretSharingGroupConfig struct {
	MinimumRequiredShares int               `yaml:"minimum_required_shares"`
	RecipientKeys         map[string]string `yaml:"recipient_keys"`
}

// SecretSharingConfig is the two-level secret-sharing configuration, as
// loaded from recovery_bundles.secret_sharing.
type SecretSharingConfig struct {
	MinimumRequiredGroups int                                 `yaml:"minimum_required_groups"`
	Groups                map[string]SecretSharingGroupConfig `yaml:"groups"`
}

// RecoveryBundlesConfig groups recovery-bundle-specific settings.
type RecoveryBundlesConfig struct {
	SecretSharing SecretSharingConfig `yaml:"secret_sharing"`
}

// Config is the top-level configuration loaded from SWH_CONFIG_FILENAME.
type Config struct {
	Storage            BackendConfig            `yaml:"storage"`
	Graph              BackendConfig            `yaml:"graph"`
	RestorationStorage BackendConfig            `yaml:"restoration_storage"`
	RemovalSearches    map[string]BackendConfig `yaml:"removal_searches"`
	RemovalStorages    map[string]BackendConfig `yaml:"removal_storages"`
	RemovalObjstorages map[string]BackendConfig `yaml:"removal_objstorages"`
	RemovalJournals    map[string]BackendConfig `yaml:"removal_journals"`
	RecoveryBundles    RecoveryBundlesConfig    `yaml:"recovery_bundles"`
}

// EnvVar is the environment variable that locates the configuration file.
const EnvVar = "SWH_CONFIG_FILENAME"

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadFromEnv loads the file named by SWH_CONFIG_FILENAME.
func LoadFromEnv() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return nil, fmt.Errorf("config: %s is not set", EnvVar)
	}
	return Load(path)
}
