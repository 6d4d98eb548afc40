// Package crypto provides key management and resolution signing for oracle
// identities. A resolution request is authenticated by a secp256k1 signature
// over a keccak256 digest of the market id, observed text, and evidence
// reference; the engine recovers the signer address and checks it against
// the configured resolver set.
package crypto

import (
	"crypto/ecdsa"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// resolutionPrefix namespaces resolution digests so a resolution signature
// can never be replayed as any other kind of message.
const resolutionPrefix = "marketengine/resolution/v1"

// ResolutionDigest computes the signed digest for one resolution request:
//
//	keccak256(prefix || marketID || keccak256(observedText) || evidence)
//
// Hashing the text keeps the digest layout fixed-width.
func ResolutionDigest(marketID uint64, observedText string, evidence common.Hash) common.Hash {
	var idBuf [8]byte
	binary.BigEndian.PutUint64(idBuf[:], marketID)

	return common.BytesToHash(ethcrypto.Keccak256(
		[]byte(resolutionPrefix),
		idBuf[:],
		ethcrypto.Keccak256([]byte(observedText)),
		evidence.Bytes(),
	))
}

// OracleSigner signs resolution requests with a secp256k1 private key.
type OracleSigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewOracleSigner creates an OracleSigner from a hex-encoded private key.
func NewOracleSigner(privateKeyHex string) (*OracleSigner, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid oracle private key: %w", err)
	}
	return &OracleSigner{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
	}, nil
}

// Address returns the oracle address derived from the private key.
func (s *OracleSigner) Address() common.Address {
	return s.address
}

// SignResolution returns a 65-byte [R || S || V] signature over the
// resolution digest.
func (s *OracleSigner) SignResolution(marketID uint64, observedText string, evidence common.Hash) ([]byte, error) {
	digest := ResolutionDigest(marketID, observedText, evidence)
	sig, err := ethcrypto.Sign(digest.Bytes(), s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("crypto: sign resolution for market %d: %w", marketID, err)
	}
	return sig, nil
}

// RecoverResolver returns the address that signed the given resolution
// request. A tampered payload recovers a different (unauthorized) address
// rather than erroring, so callers must always check the result against the
// resolver set.
func RecoverResolver(marketID uint64, observedText string, evidence common.Hash, sig []byte) (common.Address, error) {
	digest := ResolutionDigest(marketID, observedText, evidence)
	pub, err := ethcrypto.SigToPub(digest.Bytes(), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("crypto: recover resolver: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// ResolverSet is a fixed allow-list of authorized oracle addresses.
type ResolverSet struct {
	mu    sync.RWMutex
	addrs map[common.Address]bool
}

// NewResolverSet builds a ResolverSet from hex-encoded addresses.
func NewResolverSet(hexAddrs []string) *ResolverSet {
	set := &ResolverSet{addrs: make(map[common.Address]bool, len(hexAddrs))}
	for _, h := range hexAddrs {
		set.addrs[common.HexToAddress(h)] = true
	}
	return set
}

// IsAuthorizedResolver reports whether addr may resolve markets.
func (r *ResolverSet) IsAuthorizedResolver(addr common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.addrs[addr]
}
