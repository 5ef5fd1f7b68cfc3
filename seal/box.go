/*
Package seal provides asymmetric authenticated sealing of secret archive
payloads using an ephemeral sender key and a configured recipient public key.

Usage Example:

	sealed, err := seal.Seal(recipientPubKey, plaintext)
	if err != nil {
	    log.Fatal(err)
	}

	// sealed is safe to store as-is in a document store field (it is raw
	// bytes: callers that need JSON/text storage base64-encode it themselves).

Each call to Seal generates a fresh ephemeral keypair, so the same plaintext
sealed twice produces different ciphertext. Only the holder of the matching
recipient private key can open it; the bridge process itself never calls
Open, since it never needs to decrypt what it archives — Open exists for
tests and for operator tooling that verifies a sealed record.
*/
package seal

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/box"
)

// KeySize is the length in bytes of a NaCl box public or private key.
const KeySize = 32

// ErrInvalidRecipientKey is returned when a recipient public key is not
// exactly KeySize bytes.
var ErrInvalidRecipientKey = errors.New("seal: recipient public key must be 32 bytes")

// Seal encrypts plaintext for recipientPubKey using an ephemeral sender
// keypair generated per call (NaCl anonymous-sender box construction). The
// returned slice is the 24-byte nonce followed by the 32-byte ephemeral
// sender public key followed by the sealed box, so it can be opened by
// anyone holding the matching private key without any other side channel.
func Seal(recipientPubKey []byte, plaintext []byte) ([]byte, error) {
	if len(recipientPubKey) != KeySize {
		return nil, ErrInvalidRecipientKey
	}
	var recipient [KeySize]byte
	copy(recipient[:], recipientPubKey)

	senderPub, senderPriv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("seal: generate ephemeral keypair: %w", err)
	}

	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("seal: generate nonce: %w", err)
	}

	sealed := box.Seal(nil, plaintext, &nonce, &recipient, senderPriv)

	out := make([]byte, 0, len(nonce)+len(senderPub)+len(sealed))
	out = append(out, nonce[:]...)
	out = append(out, senderPub[:]...)
	out = append(out, sealed...)
	return out, nil
}

// Open decrypts a box produced by Seal using the recipient's private key.
// It is exercised only by tests, which hold both halves of a keypair to
// verify that Seal produces something a legitimate recipient can open.
func Open(recipientPrivKey []byte, sealedMsg []byte) ([]byte, error) {
	if len(recipientPrivKey) != KeySize {
		return nil, errors.New("seal: recipient private key must be 32 bytes")
	}
	if len(sealedMsg) < 24+KeySize {
		return nil, errors.New("seal: sealed message too short")
	}

	var nonce [24]byte
	copy(nonce[:], sealedMsg[:24])
	var senderPub [KeySize]byte
	copy(senderPub[:], sealedMsg[24:24+KeySize])
	var priv [KeySize]byte
	copy(priv[:], recipientPrivKey)

	plaintext, ok := box.Open(nil, sealedMsg[24+KeySize:], &nonce, &senderPub, &priv)
	if !ok {
		return nil, errors.New("seal: failed to open box (authentication failed)")
	}
	return plaintext, nil
}

// GenerateKeypair generates a new NaCl box keypair, returned as
// (publicKey, privateKey). It is exercised by tests and by operator tooling
// that provisions a new recipient keypair for the secret archive.
func GenerateKeypair() (pub, priv []byte, err error) {
	p, s, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("seal: generate keypair: %w", err)
	}
	return p[:], s[:], nil
}
