package rpc

import (
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"otcvault/core/ledger"
	"otcvault/crypto"
	"otcvault/native/auction"
)

const (
	codeAuctionInvalidParams = -32031
	codeAuctionNotFound      = -32032
	codeAuctionForbidden     = -32033
	codeAuctionConflict      = -32034
	codeAuctionInternal      = -32035
)

type auctionCreateParams struct {
	Caller          string `json:"caller"`
	Owner           string `json:"owner,omitempty"`
	Denom           string `json:"denom"`
	RateNumerator   uint64 `json:"rateNumerator"`
	RateDenominator uint64 `json:"rateDenominator"`
	Nonce           uint64 `json:"nonce"`
}

type auctionBidParams struct {
	ID       string      `json:"id"`
	Caller   string      `json:"caller"`
	Attached []coinParam `json:"attached"`
}

type auctionActorParams struct {
	ID     string `json:"id"`
	Caller string `json:"caller"`
}

type auctionRetractToParams struct {
	ID        string `json:"id"`
	Caller    string `json:"caller"`
	Recipient string `json:"recipient"`
}

type auctionIDParams struct {
	ID string `json:"id"`
}

type auctionBidderParams struct {
	ID     string `json:"id"`
	Bidder string `json:"bidder"`
}

type auctionCreateResult struct {
	ID string `json:"id"`
}

type auctionHighestBidResult struct {
	Amount string `json:"amount"`
	Bidder string `json:"bidder,omitempty"`
}

type auctionCurrentBidResult struct {
	Amount string `json:"amount"`
	Found  bool   `json:"found"`
}

func (s *Server) handleAuctionCreate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params auctionCreateParams
	if !decodeSingleParam(w, req, &params) {
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	var ownerOpt *[20]byte
	if strings.TrimSpace(params.Owner) != "" {
		owner, err := parseBech32Address(params.Owner)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
			return
		}
		ownerOpt = &owner
	}
	created, err := s.node.CreateAuction(caller, ownerOpt, strings.TrimSpace(params.Denom), params.RateNumerator, params.RateDenominator, expandNonce(params.Nonce))
	if err != nil {
		writeAuctionError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, auctionCreateResult{ID: hex.EncodeToString(created.ID[:])})
}

func (s *Server) handleAuctionBid(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params auctionBidParams
	if !decodeSingleParam(w, req, &params) {
		return
	}
	id, err := parseID(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	attached, err := parseCoins(params.Attached)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.PlaceBid(id, caller, attached); err != nil {
		writeAuctionError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleAuctionClose(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params auctionActorParams
	if !decodeSingleParam(w, req, &params) {
		return
	}
	id, err := parseID(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.CloseAuction(id, caller); err != nil {
		writeAuctionError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleAuctionRetract(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params auctionActorParams
	if !decodeSingleParam(w, req, &params) {
		return
	}
	id, err := parseID(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.RetractBid(id, caller); err != nil {
		writeAuctionError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleAuctionRetractTo(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params auctionRetractToParams
	if !decodeSingleParam(w, req, &params) {
		return
	}
	id, err := parseID(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	recipient, err := parseBech32Address(params.Recipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.RetractBidTo(id, caller, recipient); err != nil {
		writeAuctionError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleAuctionHighestBid(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params auctionIDParams
	if !decodeSingleParam(w, req, &params) {
		return
	}
	id, err := parseID(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, bidder, err := s.node.AuctionHighestBid(id)
	if err != nil {
		writeAuctionError(w, req.ID, err)
		return
	}
	result := auctionHighestBidResult{Amount: amount.String()}
	if bidder != nil {
		result.Bidder = crypto.NewAddress(crypto.Prefix, *bidder).String()
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleAuctionOwner(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params auctionIDParams
	if !decodeSingleParam(w, req, &params) {
		return
	}
	id, err := parseID(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	owner, err := s.node.AuctionOwner(id)
	if err != nil {
		writeAuctionError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, crypto.NewAddress(crypto.Prefix, owner).String())
}

func (s *Server) handleAuctionIsClosed(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params auctionIDParams
	if !decodeSingleParam(w, req, &params) {
		return
	}
	id, err := parseID(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	closed, err := s.node.AuctionIsClosed(id)
	if err != nil {
		writeAuctionError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, closed)
}

func (s *Server) handleAuctionWinner(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params auctionIDParams
	if !decodeSingleParam(w, req, &params) {
		return
	}
	id, err := parseID(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	winner, err := s.node.AuctionWinner(id)
	if err != nil {
		writeAuctionError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, crypto.NewAddress(crypto.Prefix, winner).String())
}

func (s *Server) handleAuctionCurrentBid(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params auctionBidderParams
	if !decodeSingleParam(w, req, &params) {
		return
	}
	id, err := parseID(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	bidder, err := parseBech32Address(params.Bidder)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, found, err := s.node.AuctionCurrentBid(id, bidder)
	if err != nil {
		writeAuctionError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, auctionCurrentBidResult{Amount: amount.String(), Found: found})
}

func writeAuctionError(w http.ResponseWriter, id interface{}, err error) {
	if err == nil {
		return
	}
	status := http.StatusInternalServerError
	code := codeAuctionInternal
	message := "internal_error"
	data := err.Error()
	var notOwner auction.NotOwnerError
	switch {
	case errors.Is(err, auction.ErrNotFound):
		status = http.StatusNotFound
		code = codeAuctionNotFound
		message = "not_found"
	case errors.As(err, &notOwner):
		status = http.StatusForbidden
		code = codeAuctionForbidden
		message = "forbidden"
	case errors.Is(err, auction.ErrClosed) || errors.Is(err, auction.ErrNotClosed) ||
		errors.Is(err, auction.ErrExists) || errors.Is(err, auction.ErrNoBids):
		status = http.StatusConflict
		code = codeAuctionConflict
		message = "conflict"
	case errors.Is(err, auction.ErrBidEmpty) || errors.Is(err, auction.ErrBidTooLow):
		status = http.StatusBadRequest
		code = codeAuctionInvalidParams
		message = "invalid_params"
	case errors.Is(err, ledger.ErrInsufficientFunds):
		status = http.StatusConflict
		code = codeAuctionConflict
		message = "conflict"
	}
	writeError(w, status, id, code, message, data)
}
