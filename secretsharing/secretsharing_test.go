package secretsharing

import (
	"bytes"
	"testing"

	"filippo.io/age"

	"github.com/dagarchive/alter/config"
)

type testHolder struct {
	identifier string
	public     string
	secret     string
}

func newTestHolder(t *testing.T, identifier string) testHolder {
	t.Helper()
	id, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatalf("GenerateX25519Identity: %v", err)
	}
	return testHolder{identifier: identifier, public: id.Recipient().String(), secret: id.String()}
}

// twoGroupsOneEach builds a scheme requiring one share from each of two
// groups, mirroring the "legal"/"sysadmins" fixture.
func twoGroupsOneEach(t *testing.T) (*SecretSharing, []testHolder) {
	t.Helper()
	legalAli := newTestHolder(t, "Ali")
	legalBob := newTestHolder(t, "Bob")
	sysCamille := newTestHolder(t, "Camille")
	sysDlique := newTestHolder(t, "Dlique")

	cfg := config.SecretSharingConfig{
		MinimumRequiredGroups: 2,
		Groups: map[string]config.SecretSharingGroupConfig{
			"legal": {
				MinimumRequiredShares: 1,
				RecipientKeys: map[string]string{
					legalAli.identifier: legalAli.public,
					legalBob.identifier: legalBob.public,
				},
			},
			"sysadmins": {
				MinimumRequiredShares: 1,
				RecipientKeys: map[string]string{
					sysCamille.identifier: sysCamille.public,
					sysDlique.identifier:  sysDlique.public,
				},
			},
		},
	}
	ss, err := FromConfig(cfg)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	return ss, []testHolder{legalAli, legalBob, sysCamille, sysDlique}
}

func TestGenerateEncryptedSharesProducesOneSharePerHolder(t *testing.T) {
	ss, holders := twoGroupsOneEach(t)
	key := bytes.Repeat([]byte{0x42}, ObjectDecryptionKeySize)

	shares, err := ss.GenerateEncryptedShares("test-bundle", key)
	if err != nil {
		t.Fatalf("GenerateEncryptedShares: %v", err)
	}
	if len(shares) != len(holders) {
		t.Fatalf("expected %d shares, got %d", len(holders), len(shares))
	}
	for _, h := range holders {
		ciphertext, ok := shares[h.identifier]
		if !ok {
			t.Fatalf("missing share for %s", h.identifier)
		}
		if !bytes.HasPrefix([]byte(ciphertext), []byte("age-encryption.org")) {
			t.Fatalf("share for %s is not binary age ciphertext: %q", h.identifier, ciphertext[:min(40, len(ciphertext))])
		}
	}
}

// TestRecoveryRoundTripOneFromEachGroup covers S4/S5-adjacent recovery:
// any single holder from each of the two required groups suffices.
func TestRecoveryRoundTripOneFromEachGroup(t *testing.T) {
	ss, holders := twoGroupsOneEach(t)
	key := bytes.Repeat([]byte{0x7a}, ObjectDecryptionKeySize)

	shares, err := ss.GenerateEncryptedShares("test-bundle", key)
	if err != nil {
		t.Fatalf("GenerateEncryptedShares: %v", err)
	}

	// holders[1] is Bob (legal), holders[2] is Camille (sysadmins).
	holderKeys := []HolderKey{
		{Identifier: holders[1].identifier, SecretKey: holders[1].secret},
		{Identifier: holders[2].identifier, SecretKey: holders[2].secret},
	}
	recovered, err := RecoverObjectDecryptionKey(shares, holderKeys, nil)
	if err != nil {
		t.Fatalf("RecoverObjectDecryptionKey: %v", err)
	}
	if !bytes.Equal(recovered, key) {
		t.Fatalf("recovered key mismatch: got %x want %x", recovered, key)
	}
}

// TestRecoveryFailsWithOnlyOneGroup is scenario S6: too few shares.
func TestRecoveryFailsWithOnlyOneGroup(t *testing.T) {
	ss, holders := twoGroupsOneEach(t)
	key := bytes.Repeat([]byte{0x11}, ObjectDecryptionKeySize)

	shares, err := ss.GenerateEncryptedShares("test-bundle", key)
	if err != nil {
		t.Fatalf("GenerateEncryptedShares: %v", err)
	}

	holderKeys := []HolderKey{
		{Identifier: holders[0].identifier, SecretKey: holders[0].secret},
	}
	_, err = RecoverObjectDecryptionKey(shares, holderKeys, nil)
	if err == nil {
		t.Fatalf("expected recovery with a single group to fail")
	}
	var recErr *SecretRecoveryError
	if !isSecretRecoveryError(err, &recErr) {
		t.Fatalf("expected SecretRecoveryError, got %v", err)
	}
}

// TestRecoveryAcceptsKnownMnemonics covers recovering with a mnemonic an
// operator already decrypted out of band, without a matching secret key.
func TestRecoveryAcceptsKnownMnemonics(t *testing.T) {
	ss, holders := twoGroupsOneEach(t)
	key := bytes.Repeat([]byte{0x99}, ObjectDecryptionKeySize)

	shares, err := ss.GenerateEncryptedShares("test-bundle", key)
	if err != nil {
		t.Fatalf("GenerateEncryptedShares: %v", err)
	}

	camilleMnemonic, err := openShare(shares[holders[2].identifier], holders[2].secret)
	if err != nil {
		t.Fatalf("openShare: %v", err)
	}

	holderKeys := []HolderKey{
		{Identifier: holders[0].identifier, SecretKey: holders[0].secret},
	}
	recovered, err := RecoverObjectDecryptionKey(shares, holderKeys, []string{camilleMnemonic})
	if err != nil {
		t.Fatalf("RecoverObjectDecryptionKey: %v", err)
	}
	if !bytes.Equal(recovered, key) {
		t.Fatalf("recovered key mismatch: got %x want %x", recovered, key)
	}
}

func TestFromConfigRejectsDuplicateIdentifiers(t *testing.T) {
	ali := newTestHolder(t, "Ali")
	camille := newTestHolder(t, "Camille")
	cfg := config.SecretSharingConfig{
		MinimumRequiredGroups: 2,
		Groups: map[string]config.SecretSharingGroupConfig{
			"legal": {
				MinimumRequiredShares: 1,
				RecipientKeys:         map[string]string{"Ali": ali.public},
			},
			"sysadmins": {
				MinimumRequiredShares: 1,
				RecipientKeys:         map[string]string{"Ali": camille.public},
			},
		},
	}
	if _, err := FromConfig(cfg); err == nil {
		t.Fatalf("expected duplicate identifier to be rejected")
	}
}

func isSecretRecoveryError(err error, target **SecretRecoveryError) bool {
	if e, ok := err.(*SecretRecoveryError); ok {
		*target = e
		return true
	}
	return false
}
