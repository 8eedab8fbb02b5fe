// Package identity turns a human-entered voting identifier into the stable,
// keyed, non-reversible voter fingerprint stored in the vote ledger.
//
// The raw identifier never leaves this package in any persisted form:
// callers normalize it, derive the fingerprint and then drop it.
package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ezforhamza/awaz-e-talba-sub000/internal/common"
	"golang.org/x/crypto/hkdf"
)

// MinSecretLen is the shortest server secret NewKeyring accepts.
const MinSecretLen = 16

const (
	fingerprintInfo = "awaz-e-talba/voter-fingerprint/v1"
	integrityInfo   = "awaz-e-talba/vote-integrity/v1"
)

// votingIDPattern is V-<roll number>-<4 digit check code>, e.g. V-ROLL001-4821.
var votingIDPattern = regexp.MustCompile(`^V-[A-Z0-9]{1,32}-[0-9]{4}$`)

var ErrWeakSecret = errors.New("fingerprint secret too short")

// NormalizedID is a voting identifier that passed Normalize.
type NormalizedID string

// Fingerprint is the hex HMAC-SHA256 digest of a NormalizedID.
type Fingerprint string

func (f Fingerprint) String() string { return string(f) }

// Short is a log-friendly prefix; it is not unique and must not be used as a key.
func (f Fingerprint) Short() string {
	if len(f) <= 12 {
		return string(f)
	}
	return string(f[:12])
}

// Normalize trims surrounding whitespace, upper-cases and validates raw.
// It fails with common.ErrInvalidFormat.
func Normalize(raw string) (NormalizedID, error) {
	id := strings.ToUpper(strings.TrimSpace(raw))
	if id == "" {
		return "", fmt.Errorf("%w: empty identifier", common.ErrInvalidFormat)
	}
	if !votingIDPattern.MatchString(id) {
		return "", common.ErrInvalidFormat
	}
	return NormalizedID(id), nil
}

// Keyring holds the subkeys derived from the server-held secret.
// It is immutable and safe for concurrent use.
type Keyring struct {
	fingerprintKey []byte
	integrityKey   []byte
}

// NewKeyring derives independent fingerprint and integrity keys from secret
// with HKDF-SHA256, so one leaked digest family says nothing about the other.
func NewKeyring(secret []byte) (*Keyring, error) {
	if len(secret) < MinSecretLen {
		return nil, fmt.Errorf("%w: need at least %d bytes", ErrWeakSecret, MinSecretLen)
	}

	fk, err := deriveKey(secret, fingerprintInfo)
	if err != nil {
		return nil, err
	}
	ik, err := deriveKey(secret, integrityInfo)
	if err != nil {
		return nil, err
	}

	return &Keyring{fingerprintKey: fk, integrityKey: ik}, nil
}

func deriveKey(secret []byte, info string) ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("derive %s: %w", info, err)
	}
	return key, nil
}

// Fingerprint is deterministic for a given id and keyring.
func (k *Keyring) Fingerprint(id NormalizedID) Fingerprint {
	h := hmac.New(sha256.New, k.fingerprintKey)
	h.Write([]byte(id))
	return Fingerprint(hex.EncodeToString(h.Sum(nil)))
}

// FingerprintRaw normalizes raw and fingerprints it in one step.
func (k *Keyring) FingerprintRaw(raw string) (NormalizedID, Fingerprint, error) {
	id, err := Normalize(raw)
	if err != nil {
		return "", "", err
	}
	return id, k.Fingerprint(id), nil
}

// IntegrityHash binds a vote row to the session, cast time and candidate
// it was recorded with.
func (k *Keyring) IntegrityHash(sessionID string, castAt time.Time, candidateID string) string {
	h := hmac.New(sha256.New, k.integrityKey)
	h.Write([]byte(sessionID))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(castAt.UTC().UnixNano(), 10)))
	h.Write([]byte{0})
	h.Write([]byte(candidateID))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyIntegrity recomputes the integrity hash and compares in constant time.
func (k *Keyring) VerifyIntegrity(sessionID string, castAt time.Time, candidateID, hash string) bool {
	expected := k.IntegrityHash(sessionID, castAt, candidateID)
	return hmac.Equal([]byte(expected), []byte(hash))
}
