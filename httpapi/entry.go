package httpapi

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/hex"
	"math/big"
	"net/http"
	"time"

	"weltgrid/auth"
	"weltgrid/worldstore"
)

// entryRequest is the wire shape of a signed entry message: the public key
// and signature are hex-encoded since JSON has no native byte-string type.
type entryRequest struct {
	AgentID     string `json:"agentId"`
	AgentName   string `json:"agentName"`
	Timestamp   int64  `json:"timestamp"`
	PublicKeyX  string `json:"publicKeyX"`
	PublicKeyY  string `json:"publicKeyY"`
	SignatureR  string `json:"signatureR"`
	SignatureS  string `json:"signatureS"`
}

type entryResponse struct {
	Token string `json:"token"`
}

func parseHexBigInt(s string) (*big.Int, bool) {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) == 0 {
		return nil, false
	}
	return new(big.Int).SetBytes(raw), true
}

// handleEntry verifies a wallet-signed entry message and mints a session
// token, then upserts the agent's live record so a first-time connection
// shows up immediately in agents-lite without waiting on a separate
// registration call.
func (s *Server) handleEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := decodeJSON(r, &req); err != nil || req.AgentID == "" {
		writeError(w, http.StatusBadRequest, "validation/invalid-body", "malformed entry request")
		return
	}

	x, ok1 := parseHexBigInt(req.PublicKeyX)
	y, ok2 := parseHexBigInt(req.PublicKeyY)
	r_, ok3 := parseHexBigInt(req.SignatureR)
	sVal, ok4 := parseHexBigInt(req.SignatureS)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		writeError(w, http.StatusBadRequest, "validation/invalid-body", "malformed signature or public key")
		return
	}

	curve := elliptic.P256()
	if !curve.IsOnCurve(x, y) {
		writeError(w, http.StatusBadRequest, "validation/invalid-body", "public key is not on curve")
		return
	}
	pub := &ecdsa.PublicKey{Curve: curve, X: x, Y: y}

	msg := auth.EntryMessage{AgentID: req.AgentID, Timestamp: req.Timestamp}
	token, err := s.verifier.VerifyEntry(msg, auth.Signature{R: r_, S: sVal}, pub, time.Now())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "auth/unauthorized", err.Error())
		return
	}

	wallet := auth.WalletAddress(pub)
	agent, existed := s.store.GetAgent(req.AgentID)
	if !existed {
		agent = worldstore.Agent{
			ID:         req.AgentID,
			OwnerID:    wallet,
			Name:       req.AgentName,
			LastSeenAt: time.Now(),
		}
	} else {
		agent.LastSeenAt = time.Now()
	}
	s.store.AddAgent(agent)
	if s.registry != nil {
		_ = s.registry.UpsertAgent(agent)
	}

	writeJSON(w, http.StatusOK, entryResponse{Token: token})
}
