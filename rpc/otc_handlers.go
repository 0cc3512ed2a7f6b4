package rpc

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"otcvault/core/ledger"
	"otcvault/crypto"
	"otcvault/native/asset"
	"otcvault/native/otc"
	"otcvault/native/token"
)

const (
	codeOTCInvalidParams = -32021
	codeOTCNotFound      = -32022
	codeOTCForbidden     = -32023
	codeOTCConflict      = -32024
	codeOTCInternal      = -32025
)

type assetParam struct {
	Kind   string `json:"kind"`
	Denom  string `json:"denom,omitempty"`
	Token  string `json:"token,omitempty"`
	Amount string `json:"amount"`
}

type coinParam struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

type otcOpenParams struct {
	Caller string     `json:"caller"`
	Offer  assetParam `json:"offer"`
	Price  assetParam `json:"price"`
	Nonce  uint64     `json:"nonce"`
}

type otcBuyParams struct {
	ID       string      `json:"id"`
	Caller   string      `json:"caller"`
	Attached []coinParam `json:"attached,omitempty"`
}

type otcActorParams struct {
	ID     string `json:"id"`
	Caller string `json:"caller"`
}

type otcIDParams struct {
	ID string `json:"id"`
}

type assetJSON struct {
	Kind   string `json:"kind"`
	Denom  string `json:"denom,omitempty"`
	Token  string `json:"token,omitempty"`
	Amount string `json:"amount"`
}

type agreementJSON struct {
	ID        string    `json:"id"`
	Offer     assetJSON `json:"offer"`
	Price     assetJSON `json:"price"`
	Receiver  string    `json:"receiver"`
	Status    string    `json:"status"`
	CreatedAt int64     `json:"createdAt"`
}

type otcOpenResult struct {
	ID string `json:"id"`
}

func (s *Server) handleOTCOpen(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params otcOpenParams
	if !decodeSingleParam(w, req, &params) {
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOTCInvalidParams, "invalid_params", err.Error())
		return
	}
	offer, err := parseAssetParam(params.Offer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOTCInvalidParams, "invalid_params", fmt.Sprintf("offer: %v", err))
		return
	}
	price, err := parseAssetParam(params.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOTCInvalidParams, "invalid_params", fmt.Sprintf("price: %v", err))
		return
	}
	agreement, err := s.node.OpenAgreement(caller, offer, price, expandNonce(params.Nonce))
	if err != nil {
		writeOTCError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, otcOpenResult{ID: hex.EncodeToString(agreement.ID[:])})
}

func (s *Server) handleOTCBuy(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params otcBuyParams
	if !decodeSingleParam(w, req, &params) {
		return
	}
	id, err := parseID(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOTCInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOTCInvalidParams, "invalid_params", err.Error())
		return
	}
	attached, err := parseCoins(params.Attached)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOTCInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.BuyAgreement(id, caller, attached); err != nil {
		writeOTCError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleOTCClose(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params otcActorParams
	if !decodeSingleParam(w, req, &params) {
		return
	}
	id, err := parseID(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOTCInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOTCInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.CloseAgreement(id, caller); err != nil {
		writeOTCError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleOTCIsOpen(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params otcIDParams
	if !decodeSingleParam(w, req, &params) {
		return
	}
	id, err := parseID(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOTCInvalidParams, "invalid_params", err.Error())
		return
	}
	open, err := s.node.AgreementIsOpen(id)
	if err != nil {
		writeOTCError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, open)
}

func (s *Server) handleOTCStatus(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params otcIDParams
	if !decodeSingleParam(w, req, &params) {
		return
	}
	id, err := parseID(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOTCInvalidParams, "invalid_params", err.Error())
		return
	}
	agreement, err := s.node.AgreementStatus(id)
	if err != nil {
		writeOTCError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, agreementToJSON(agreement))
}

func agreementToJSON(a *otc.Agreement) agreementJSON {
	status := "completed"
	switch {
	case a.Open:
		status = "open"
	case !a.Completed:
		status = "cancelled"
	}
	return agreementJSON{
		ID:        hex.EncodeToString(a.ID[:]),
		Offer:     assetToJSON(a.Offer),
		Price:     assetToJSON(a.Price),
		Receiver:  crypto.NewAddress(crypto.Prefix, a.Receiver).String(),
		Status:    status,
		CreatedAt: a.CreatedAt,
	}
}

func assetToJSON(d asset.Descriptor) assetJSON {
	out := assetJSON{Amount: d.Amount.String()}
	switch d.Kind {
	case asset.Native:
		out.Kind = "native"
		out.Denom = d.Denom
	case asset.Managed:
		out.Kind = "managed"
		out.Token = hex.EncodeToString(d.Token[:])
	}
	return out
}

func decodeSingleParam(w http.ResponseWriter, req *RPCRequest, into interface{}) bool {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeOTCInvalidParams, "invalid_params", "exactly one parameter object expected")
		return false
	}
	if err := json.Unmarshal(req.Params[0], into); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOTCInvalidParams, "invalid_params", err.Error())
		return false
	}
	return true
}

func parseBech32Address(addr string) ([20]byte, error) {
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		return [20]byte{}, fmt.Errorf("address required")
	}
	decoded, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return [20]byte{}, err
	}
	return decoded.Bytes(), nil
}

func parsePositiveBigInt(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount")
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}

func parseID(value string) ([32]byte, error) {
	var id [32]byte
	trimmed := strings.TrimSpace(strings.TrimPrefix(value, "0x"))
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return id, fmt.Errorf("invalid id: %w", err)
	}
	if len(decoded) != 32 {
		return id, fmt.Errorf("id must be 32 bytes, got %d", len(decoded))
	}
	copy(id[:], decoded)
	return id, nil
}

func parseAssetParam(p assetParam) (asset.Descriptor, error) {
	amount, err := parsePositiveBigInt(p.Amount)
	if err != nil {
		return asset.Descriptor{}, err
	}
	switch strings.ToLower(strings.TrimSpace(p.Kind)) {
	case "native":
		return asset.NativeAsset(strings.TrimSpace(p.Denom), amount)
	case "managed":
		tokenAddr, err := parseTokenAddress(p.Token)
		if err != nil {
			return asset.Descriptor{}, err
		}
		return asset.ManagedAsset(tokenAddr, amount)
	default:
		return asset.Descriptor{}, fmt.Errorf("kind must be native or managed")
	}
}

func parseTokenAddress(value string) ([20]byte, error) {
	var tokenAddr [20]byte
	trimmed := strings.TrimSpace(strings.TrimPrefix(value, "0x"))
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return tokenAddr, fmt.Errorf("invalid token address: %w", err)
	}
	if len(decoded) != 20 {
		return tokenAddr, fmt.Errorf("token address must be 20 bytes, got %d", len(decoded))
	}
	copy(tokenAddr[:], decoded)
	return tokenAddr, nil
}

func parseCoins(params []coinParam) ([]asset.Coin, error) {
	coins := make([]asset.Coin, 0, len(params))
	for _, p := range params {
		denom := strings.TrimSpace(p.Denom)
		if denom == "" {
			return nil, fmt.Errorf("attached coin denom required")
		}
		amount, err := parsePositiveBigInt(p.Amount)
		if err != nil {
			return nil, fmt.Errorf("attached coin %s: %w", denom, err)
		}
		coins = append(coins, asset.Coin{Denom: denom, Amount: amount})
	}
	return coins, nil
}

// expandNonce widens a caller supplied nonce into the 32-byte salt used for
// identifier derivation.
func expandNonce(nonce uint64) [32]byte {
	var salt [32]byte
	binary.BigEndian.PutUint64(salt[24:], nonce)
	return salt
}

func writeOTCError(w http.ResponseWriter, id interface{}, err error) {
	if err == nil {
		return
	}
	status := http.StatusInternalServerError
	code := codeOTCInternal
	message := "internal_error"
	data := err.Error()
	var notOwner otc.NotOwnerError
	switch {
	case errors.Is(err, otc.ErrNotFound):
		status = http.StatusNotFound
		code = codeOTCNotFound
		message = "not_found"
	case errors.As(err, &notOwner):
		status = http.StatusForbidden
		code = codeOTCForbidden
		message = "forbidden"
	case errors.Is(err, otc.ErrClosed) || errors.Is(err, otc.ErrExists):
		status = http.StatusConflict
		code = codeOTCConflict
		message = "conflict"
	case errors.Is(err, otc.ErrNoFunds) || errors.Is(err, otc.ErrOfferFail) ||
		errors.Is(err, asset.ErrNotOneAsset) || errors.Is(err, asset.ErrInvalidAmount):
		status = http.StatusBadRequest
		code = codeOTCInvalidParams
		message = "invalid_params"
	case errors.Is(err, ledger.ErrInsufficientFunds) ||
		errors.Is(err, token.ErrInsufficientBalance) ||
		errors.Is(err, token.ErrInsufficientAllowance):
		status = http.StatusConflict
		code = codeOTCConflict
		message = "conflict"
	}
	writeError(w, status, id, code, message, data)
}
