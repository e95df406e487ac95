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

package recoverybundle

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dagarchive/alter/secretsharing"
)

// Rollover recovers the bundle's object decryption key via its own
// decryption-key provider, generates a fresh set of encrypted shares
// under newSharing, and rewrites manifest.yml in place. The object
// decryption key itself is unchanged and the rest of the zip is left
// untouched — only the manifest's decryption_key_shares (and, since the
// manifest is rewritten wholesale, its unchanged other fields) are
// replaced.
//
// The rewrite goes through a temp-file-plus-rename, the same
// write-new/rename-over pattern core/state/pruner.StateBloom.Commit
// uses to replace its own on-disk file without ever leaving a half
// written one in place. Neither the temp file nor the directory is
// fsynced.
func (b *Bundle) Rollover(newSharing *secretsharing.SecretSharing) error {
	key, err := b.decryptionKey()
	if err != nil {
		return fmt.Errorf("recoverybundle: rollover: recovering object decryption key: %w", err)
	}
	shares, err := newSharing.GenerateEncryptedShares(b.manifest.RemovalIdentifier, key)
	if err != nil {
		return fmt.Errorf("recoverybundle: rollover: generating shares: %w", err)
	}

	newManifest := *b.manifest
	newManifest.DecryptionKeyShares = shares
	if err := newManifest.Validate(); err != nil {
		return fmt.Errorf("recoverybundle: rollover: %w", err)
	}
	data, err := newManifest.Dump()
	if err != nil {
		return fmt.Errorf("recoverybundle: rollover: %w", err)
	}

	if err := b.zr.Close(); err != nil {
		return fmt.Errorf("recoverybundle: rollover: closing bundle: %w", err)
	}

	if err := rewriteManifestEntry(b.path, data); err != nil {
		return err
	}

	b.manifest = &newManifest

	reopened, err := zip.OpenReader(b.path)
	if err != nil {
		return fmt.Errorf("recoverybundle: rollover: reopening %s: %w", b.path, err)
	}
	b.zr = reopened
	return nil
}

// rewriteManifestEntry rewrites a copy of the zip at path so its
// manifest.yml entry holds data, by rebuilding the archive into a
// sibling temp file and swapping it in — archive/zip has no in-place
// single-entry replace.
func rewriteManifestEntry(path string, data []byte) error {
	src, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("recoverybundle: rollover: opening %s: %w", path, err)
	}
	defer src.Close()

	dst, err := os.CreateTemp(filepath.Dir(path), "rollover-rebuild-*.zip")
	if err != nil {
		return fmt.Errorf("recoverybundle: rollover: %w", err)
	}
	dstPath := dst.Name()
	zw := zip.NewWriter(dst)

	for _, f := range src.File {
		if f.Name == "manifest.yml" {
			continue
		}
		if err := copyZipEntry(zw, f); err != nil {
			zw.Close()
			dst.Close()
			os.Remove(dstPath)
			return err
		}
	}
	w, err := zw.Create("manifest.yml")
	if err != nil {
		zw.Close()
		dst.Close()
		os.Remove(dstPath)
		return fmt.Errorf("recoverybundle: rollover: creating manifest entry: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		zw.Close()
		dst.Close()
		os.Remove(dstPath)
		return fmt.Errorf("recoverybundle: rollover: writing manifest entry: %w", err)
	}
	if err := zw.Close(); err != nil {
		dst.Close()
		os.Remove(dstPath)
		return fmt.Errorf("recoverybundle: rollover: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dstPath)
		return fmt.Errorf("recoverybundle: rollover: %w", err)
	}
	if err := os.Rename(dstPath, path); err != nil {
		os.Remove(dstPath)
		return fmt.Errorf("recoverybundle: rollover: %w", err)
	}
	return nil
}

func copyZipEntry(zw *zip.Writer, f *zip.File) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("recoverybundle: rollover: opening entry %s: %w", f.Name, err)
	}
	defer rc.Close()
	w, err := zw.CreateHeader(&zip.FileHeader{Name: f.Name, Method: f.Method})
	if err != nil {
		return fmt.Errorf("recoverybundle: rollover: creating entry %s: %w", f.Name, err)
	}
	if _, err := w.ReadFrom(rc); err != nil {
		return fmt.Errorf("recoverybundle: rollover: copying entry %s: %w", f.Name, err)
	}
	return nil
}
