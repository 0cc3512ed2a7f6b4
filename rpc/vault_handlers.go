package rpc

import (
	"net/http"
	"strings"

	"otcvault/crypto"
)

type balanceParams struct {
	Address string `json:"address"`
	Denom   string `json:"denom"`
}

type tokenBalanceParams struct {
	Token  string `json:"token"`
	Holder string `json:"holder"`
}

type balanceResult struct {
	Address string `json:"address"`
	Denom   string `json:"denom"`
	Amount  string `json:"amount"`
}

func (s *Server) handleGetBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params balanceParams
	if !decodeSingleParam(w, req, &params) {
		return
	}
	addr, err := parseBech32Address(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	denom := strings.TrimSpace(params.Denom)
	if denom == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", "denom required")
		return
	}
	amount, err := s.node.BalanceOf(addr, denom)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "internal_error", err.Error())
		return
	}
	writeResult(w, req.ID, balanceResult{Address: params.Address, Denom: denom, Amount: amount.String()})
}

func (s *Server) handleGetTokenBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params tokenBalanceParams
	if !decodeSingleParam(w, req, &params) {
		return
	}
	tokenAddr, err := parseTokenAddress(params.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	holder, err := parseBech32Address(params.Holder)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := s.node.TokenBalanceOf(tokenAddr, holder)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "internal_error", err.Error())
		return
	}
	writeResult(w, req.ID, amount.String())
}

func (s *Server) handleVaultAddress(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	writeResult(w, req.ID, crypto.NewAddress(crypto.Prefix, s.node.VaultAddress()).String())
}
