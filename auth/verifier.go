// Package auth turns a wallet-signed entry message into a bearer identity
// token the rest of the server trusts for the lifetime of a session, and
// validates that token on every subsequent action request.
package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"
)

// EntryFreshness bounds how old a signed entry message may be before
// VerifyEntry rejects it as stale, closing the replay window a captured
// signature would otherwise leave open.
const EntryFreshness = 5 * time.Minute

var (
	ErrStaleEntry        = errors.New("auth: entry message older than 5 minutes")
	ErrBadSignature      = errors.New("auth: signature does not verify against the supplied public key")
	ErrTokenMismatch     = errors.New("auth/token-mismatch")
	ErrEntryFeeUnpaid    = errors.New("auth: entry fee not confirmed on chain")
	ErrAgentNotOwned     = errors.New("auth: wallet does not own this agent on chain")
)

// EntryMessage is what a wallet signs to prove control of an identity before
// the server mints a session token. Timestamp is unix seconds, chosen by the
// client, and checked against EntryFreshness.
type EntryMessage struct {
	AgentID   string
	Timestamp int64
}

// ChainClient is the on-chain seam: entry fee confirmation and agent
// ownership are real blockchain reads in production but are out of this
// module's scope per the Non-goals. VerifyEntry calls through this interface
// so callers can fake it in tests rather than the verifier growing RPC
// internals of its own.
type ChainClient interface {
	IsEntryFeePaid(wallet string) (bool, error)
	OwnsAgent(wallet, agentID string) (bool, error)
}

// Verifier checks a signed entry message against a caller-supplied public key
// and mints the session token that follows from it. The wallet "address" here
// is "0x" plus the hex of the first 20 bytes of the SHA-256 digest of that
// ECDSA public key (see WalletAddress) — standard EVM ecrecover derives the
// address without the public key present, which needs a secp256k1 curve the
// standard library doesn't implement; rather than vendor that curve for one
// verification seam, VerifyEntry takes the public key as a separate argument
// and checks the signature against it directly, which is the same trust property (only the
// keypair holder can produce a valid signature) without adding a dependency
// the rest of the corpus doesn't otherwise need.
type Verifier struct {
	chain ChainClient
	jwt   *TokenIssuer
}

func NewVerifier(chain ChainClient, issuer *TokenIssuer) *Verifier {
	return &Verifier{chain: chain, jwt: issuer}
}

// VerifyEntry checks the signature, freshness, and on-chain entry fee for
// one wallet, then mints a session token binding it to agentID.
func (v *Verifier) VerifyEntry(msg EntryMessage, signature Signature, pub *ecdsa.PublicKey, now time.Time) (string, error) {
	if now.Sub(time.Unix(msg.Timestamp, 0)) > EntryFreshness {
		return "", ErrStaleEntry
	}

	digest := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", msg.AgentID, msg.Timestamp)))
	if !ecdsa.Verify(pub, digest[:], signature.R, signature.S) {
		return "", ErrBadSignature
	}

	wallet := WalletAddress(pub)

	paid, err := v.chain.IsEntryFeePaid(wallet)
	if err != nil {
		return "", fmt.Errorf("auth: check entry fee: %w", err)
	}
	if !paid {
		return "", ErrEntryFeeUnpaid
	}

	owns, err := v.chain.OwnsAgent(wallet, msg.AgentID)
	if err != nil {
		return "", fmt.Errorf("auth: check agent ownership: %w", err)
	}
	if !owns {
		return "", ErrAgentNotOwned
	}

	return v.jwt.Mint(msg.AgentID, wallet)
}

// Rebind checks a validated token's claims against the agent record the
// caller looked up for the request; a mismatch is the one case §6.1 names
// explicitly as auth/token-mismatch rather than a generic auth failure.
func (v *Verifier) Rebind(claims Claims, storedOwnerWallet string) error {
	if claims.OwnerWallet != storedOwnerWallet {
		return ErrTokenMismatch
	}
	return nil
}

// Signature is the (r, s) pair produced by ecdsa.Sign, carried as plain
// big.Int fields since the wire encoding (hex, base64) is the transport
// layer's concern, not this package's.
type Signature struct {
	R, S *big.Int
}

// WalletAddress derives a stable, opaque identifier for a public key. It is
// not a real chain address format — ownership/fee checks go through
// ChainClient using whatever address format the real chain expects — it is
// only the identifier this server uses to correlate a verified signature
// with a stored agent's owner_id.
func WalletAddress(pub *ecdsa.PublicKey) string {
	raw := elliptic.Marshal(pub.Curve, pub.X, pub.Y)
	sum := sha256.Sum256(raw)
	return "0x" + hex.EncodeToString(sum[:20])
}
