package utils

import (
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"
)

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrAddressMismatch  = errors.New("signature does not match address")
	ErrMalformedMessage = errors.New("malformed sign-in message")
)

var hexAddress = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// IsHexAddress reports whether s looks like a 20-byte hex wallet address.
func IsHexAddress(s string) bool {
	return hexAddress.MatchString(s)
}

// PersonalMessageHash is the EIP-191 hash wallets sign for personal_sign.
func PersonalMessageHash(message string) []byte {
	h := sha3.NewLegacyKeccak256()
	fmt.Fprintf(h, "\x19Ethereum Signed Message:\n%d%s", len(message), message)
	return h.Sum(nil)
}

// PublicKeyToAddress derives the 0x-prefixed, lower-case wallet address.
func PublicKeyToAddress(pub *secp256k1.PublicKey) string {
	raw := pub.SerializeUncompressed()
	h := sha3.NewLegacyKeccak256()
	h.Write(raw[1:])
	return "0x" + hex.EncodeToString(h.Sum(nil)[12:])
}

// RecoverAddress recovers the signer of a personal_sign signature
// (65 bytes r || s || v, hex encoded, v in {0,1,27,28}).
func RecoverAddress(message, signature string) (string, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil || len(sig) != 65 {
		return "", ErrInvalidSignature
	}

	v := sig[64]
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return "", ErrInvalidSignature
	}

	compact := make([]byte, 65)
	compact[0] = 27 + v
	copy(compact[1:], sig[:64])

	pub, _, err := ecdsa.RecoverCompact(compact, PersonalMessageHash(message))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return PublicKeyToAddress(pub), nil
}

// VerifySignature checks that address signed message.
func VerifySignature(address, message, signature string) error {
	signer, err := RecoverAddress(message, signature)
	if err != nil {
		return err
	}
	if !strings.EqualFold(signer, address) {
		return ErrAddressMismatch
	}
	return nil
}

// SignIn is the challenge a wallet signs to open a session.
type SignIn struct {
	Address  string
	Nonce    string
	IssuedAt time.Time
}

const signInTitle = "RidePool sign-in"

// String renders the exact text the wallet is asked to sign.
func (s SignIn) String() string {
	return fmt.Sprintf("%s\nAddress: %s\nNonce: %s\nIssued At: %s",
		signInTitle, s.Address, s.Nonce, s.IssuedAt.UTC().Format(time.RFC3339))
}

// ParseSignIn reads a challenge back from signed text.
func ParseSignIn(message string) (SignIn, error) {
	lines := strings.Split(strings.ReplaceAll(message, "\r\n", "\n"), "\n")
	if len(lines) != 4 || lines[0] != signInTitle {
		return SignIn{}, ErrMalformedMessage
	}

	var s SignIn
	fields := map[string]*string{}
	var address, nonce, issued string
	fields["Address: "] = &address
	fields["Nonce: "] = &nonce
	fields["Issued At: "] = &issued
	for _, line := range lines[1:] {
		matched := false
		for prefix, dst := range fields {
			if strings.HasPrefix(line, prefix) {
				*dst = strings.TrimPrefix(line, prefix)
				matched = true
			}
		}
		if !matched {
			return SignIn{}, ErrMalformedMessage
		}
	}

	issuedAt, err := time.Parse(time.RFC3339, issued)
	if err != nil || address == "" || nonce == "" {
		return SignIn{}, ErrMalformedMessage
	}
	s.Address, s.Nonce, s.IssuedAt = address, nonce, issuedAt
	return s, nil
}
