package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"otcvault/core"
	"otcvault/core/genesis"
	"otcvault/crypto"
	"otcvault/native/fees"
	"otcvault/storage"
)

const testToken = "secret-test-token"

func testAddr(fill byte) [20]byte {
	var a [20]byte
	for i := range a {
		a[i] = fill
	}
	return a
}

func bech(addr [20]byte) string {
	return crypto.NewAddress(crypto.Prefix, addr).String()
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	policy := fees.Policy{
		Denominator: 100000,
		Recipients: []fees.Recipient{
			{Wallet: testAddr(0xA1), Numerator: 8},
			{Wallet: testAddr(0xA2), Numerator: 2},
		},
	}
	node, err := core.NewNode(storage.NewMemDB(), policy)
	require.NoError(t, err)
	require.NoError(t, node.ApplyGenesis(&genesis.Allocation{
		Accounts: []genesis.AccountAlloc{
			{Address: bech(testAddr(0x01)), Balances: map[string]string{"gold": "1000"}},
			{Address: bech(testAddr(0x02)), Balances: map[string]string{"atom": "50000"}},
		},
	}))

	server := NewServer(node)
	server.authToken = testToken
	ts := httptest.NewServer(http.HandlerFunc(server.handle))
	t.Cleanup(ts.Close)
	return server, ts
}

func rpcCall(t *testing.T, url, method string, params interface{}, authorized bool) (*RPCResponse, int) {
	t.Helper()
	req := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		req["params"] = []interface{}{params}
	}
	body, err := json.Marshal(req)
	require.NoError(t, err)

	httpReq, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	require.NoError(t, err)
	httpReq.Header.Set("Content-Type", "application/json")
	if authorized {
		httpReq.Header.Set("Authorization", "Bearer "+testToken)
	}
	resp, err := http.DefaultClient.Do(httpReq)
	require.NoError(t, err)
	defer resp.Body.Close()

	decoded := &RPCResponse{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(decoded))
	return decoded, resp.StatusCode
}

func TestAgreementFlowOverRPC(t *testing.T) {
	_, ts := newTestServer(t)
	seller := bech(testAddr(0x01))
	buyer := bech(testAddr(0x02))

	resp, status := rpcCall(t, ts.URL, "otc_open", map[string]interface{}{
		"caller": seller,
		"offer":  map[string]string{"kind": "native", "denom": "gold", "amount": "500"},
		"price":  map[string]string{"kind": "native", "denom": "atom", "amount": "10000"},
		"nonce":  1,
	}, true)
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, resp.Error)

	result, ok := resp.Result.(map[string]interface{})
	require.True(t, ok)
	id, ok := result["id"].(string)
	require.True(t, ok)
	require.Len(t, id, 64)

	resp, status = rpcCall(t, ts.URL, "otc_isOpen", map[string]string{"id": id}, false)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, resp.Result)

	resp, status = rpcCall(t, ts.URL, "otc_buy", map[string]interface{}{
		"id":     id,
		"caller": buyer,
		"attached": []map[string]string{
			{"denom": "atom", "amount": "10000"},
		},
	}, true)
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, resp.Error)

	resp, _ = rpcCall(t, ts.URL, "otc_status", map[string]string{"id": id}, false)
	statusResult, ok := resp.Result.(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "completed", statusResult["status"])

	resp, _ = rpcCall(t, ts.URL, "vault_getBalance", map[string]string{
		"address": seller,
		"denom":   "atom",
	}, false)
	balanceResult, ok := resp.Result.(map[string]interface{})
	require.True(t, ok)
	// 8/100000 and 2/100000 of 10000 both truncate to zero.
	require.Equal(t, "10000", balanceResult["amount"])
}

func TestAuctionFlowOverRPC(t *testing.T) {
	_, ts := newTestServer(t)
	owner := bech(testAddr(0x01))
	bidder := bech(testAddr(0x02))

	resp, status := rpcCall(t, ts.URL, "auction_create", map[string]interface{}{
		"caller":          owner,
		"denom":           "atom",
		"rateNumerator":   5,
		"rateDenominator": 100,
		"nonce":           1,
	}, true)
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, resp.Error)
	result := resp.Result.(map[string]interface{})
	id := result["id"].(string)

	resp, _ = rpcCall(t, ts.URL, "auction_bid", map[string]interface{}{
		"id":     id,
		"caller": bidder,
		"attached": []map[string]string{
			{"denom": "atom", "amount": "1000"},
		},
	}, true)
	require.Nil(t, resp.Error)

	resp, _ = rpcCall(t, ts.URL, "auction_highestBid", map[string]string{"id": id}, false)
	high := resp.Result.(map[string]interface{})
	require.Equal(t, "950", high["amount"])
	require.Equal(t, bidder, high["bidder"])

	resp, _ = rpcCall(t, ts.URL, "auction_close", map[string]interface{}{
		"id":     id,
		"caller": owner,
	}, true)
	require.Nil(t, resp.Error)

	resp, _ = rpcCall(t, ts.URL, "auction_winner", map[string]string{"id": id}, false)
	require.Equal(t, bidder, resp.Result)
}

func TestMutatingMethodsRequireAuth(t *testing.T) {
	_, ts := newTestServer(t)
	resp, status := rpcCall(t, ts.URL, "otc_open", map[string]interface{}{
		"caller": bech(testAddr(0x01)),
		"offer":  map[string]string{"kind": "native", "denom": "gold", "amount": "500"},
		"price":  map[string]string{"kind": "native", "denom": "atom", "amount": "10000"},
		"nonce":  1,
	}, false)
	require.Equal(t, http.StatusUnauthorized, status)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)
}

func TestErrorMapping(t *testing.T) {
	_, ts := newTestServer(t)

	unknownID := fmt.Sprintf("%064d", 7)
	resp, status := rpcCall(t, ts.URL, "otc_isOpen", map[string]string{"id": unknownID}, false)
	require.Equal(t, http.StatusNotFound, status)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeOTCNotFound, resp.Error.Code)

	resp, status = rpcCall(t, ts.URL, "otc_isOpen", map[string]string{"id": "zz"}, false)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, codeOTCInvalidParams, resp.Error.Code)

	resp, status = rpcCall(t, ts.URL, "no_suchMethod", nil, false)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestRejectsMalformedEnvelope(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL, "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	decoded := &RPCResponse{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(decoded))
	require.Equal(t, codeParseError, decoded.Error.Code)
}
