// Package crypto is the narrow signing/verification interface used by the
// consensus package's sign/verify paths. It exists so the consensus package
// never imports a concrete crypto library directly, matching the injected-
// provider shape the rest of this codebase uses elsewhere.
package crypto

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// Provider is implemented by SignerProvider, the only concrete
// implementation in this module. It is kept as an interface so callers can
// substitute an HSM-backed signer without touching consensus code.
type Provider interface {
	Verify(pubkey []byte, sig []byte, digest [32]byte) bool
	Sign(privkey []byte, digest [32]byte) ([]byte, error)
}

// SignerProvider implements Provider over secp256k1 ECDSA via btcec.
type SignerProvider struct{}

func (SignerProvider) Verify(pubkey []byte, sig []byte, digest [32]byte) bool {
	pk, err := btcec.ParsePubKey(pubkey)
	if err != nil {
		return false
	}
	signature, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false
	}
	return signature.Verify(digest[:], pk)
}

func (SignerProvider) Sign(privkey []byte, digest [32]byte) ([]byte, error) {
	priv, pub := btcec.PrivKeyFromBytes(privkey)
	_ = pub
	sig := ecdsa.Sign(priv, digest[:])
	return sig.Serialize(), nil
}
