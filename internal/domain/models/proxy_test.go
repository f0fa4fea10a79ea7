package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	proxyAddr = common.HexToAddress("0x1000000000000000000000000000000000000001")
	implAddr  = common.HexToAddress("0x2000000000000000000000000000000000000002")
	adminAddr = common.HexToAddress("0x3000000000000000000000000000000000000003")
)

func TestProxyRegistry_Upsert(t *testing.T) {
	reg := ProxyRegistry{
		"Other": {ContractName: "Other", Address: common.HexToAddress("0x9")},
	}

	reg.Upsert("Counter", &ProxyRecord{Address: proxyAddr})
	require.NotNil(t, reg.Get("Counter"))
	assert.Equal(t, "Counter", reg.Get("Counter").ContractName)
	assert.Equal(t, proxyAddr, reg.Get("Counter").Address)

	reg.Upsert("Counter", &ProxyRecord{Address: proxyAddr, Implementation: implAddr})
	assert.Len(t, reg, 2)
	assert.Equal(t, implAddr, reg.Get("Counter").Implementation)
	assert.Equal(t, common.HexToAddress("0x9"), reg.Get("Other").Address)
}

func TestProxyRegistry_RemoveAndNames(t *testing.T) {
	reg := ProxyRegistry{}
	reg.Upsert("Zeta", &ProxyRecord{Address: proxyAddr})
	reg.Upsert("Alpha", &ProxyRecord{Address: implAddr})

	assert.Equal(t, []string{"Alpha", "Zeta"}, reg.Names())
	assert.Equal(t, "Alpha", reg.Records()[0].ContractName)

	assert.True(t, reg.Remove("Zeta"))
	assert.False(t, reg.Remove("Zeta"))
	assert.Equal(t, []string{"Alpha"}, reg.Names())
}

func TestProxyRegistry_CloneIsDeep(t *testing.T) {
	reg := ProxyRegistry{}
	reg.Upsert("Counter", &ProxyRecord{
		Address: proxyAddr,
		Extra:   map[string]json.RawMessage{"note": json.RawMessage(`"keep"`)},
	})

	clone := reg.Clone()
	clone.Get("Counter").Address = implAddr
	clone.Get("Counter").Extra["note"] = json.RawMessage(`"changed"`)

	assert.Equal(t, proxyAddr, reg.Get("Counter").Address)
	assert.JSONEq(t, `"keep"`, string(reg.Get("Counter").Extra["note"]))
}

func TestProxyRecord_JSONPreservesExtraFields(t *testing.T) {
	input := `{
		"Counter": {
			"address": "0x1000000000000000000000000000000000000001",
			"implementation": "0x2000000000000000000000000000000000000002",
			"kind": "transparent",
			"admin": "0x3000000000000000000000000000000000000003",
			"lastDeployedAt": "2024-05-01T10:00:00Z",
			"network": "sepolia",
			"tags": ["core", "v1"]
		}
	}`

	var reg ProxyRegistry
	require.NoError(t, json.Unmarshal([]byte(input), &reg))

	rec := reg.Get("Counter")
	require.NotNil(t, rec)
	assert.Equal(t, "Counter", rec.ContractName)
	assert.Equal(t, proxyAddr, rec.Address)
	assert.Equal(t, implAddr, rec.Implementation)
	assert.Equal(t, adminAddr, rec.Admin)
	assert.Equal(t, ProxyKindTransparent, rec.Kind)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), rec.LastDeployedAt.UTC())
	assert.Len(t, rec.Extra, 2)

	out, err := json.Marshal(reg)
	require.NoError(t, err)
	assert.JSONEq(t, input, string(out))
}

func TestProxyRecord_MinimalJSON(t *testing.T) {
	out, err := json.Marshal(ProxyRecord{Address: proxyAddr})
	require.NoError(t, err)
	assert.JSONEq(t, `{"address":"0x1000000000000000000000000000000000000001"}`, string(out))
}

func TestProxyRecord_InvalidJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		msg   string
	}{
		{"missing address", `{"A": {"implementation": "0x2000000000000000000000000000000000000002"}}`, "missing address"},
		{"bad address", `{"A": {"address": "not-an-address"}}`, "invalid address"},
		{"numeric address", `{"A": {"address": 12}}`, "invalid address"},
		{"null record", `{"A": null}`, "record is null"},
		{"record not object", `{"A": "0x1000000000000000000000000000000000000001"}`, "cannot unmarshal"},
		{"bad timestamp", `{"A": {"address": "0x1000000000000000000000000000000000000001", "lastDeployedAt": "yesterday"}}`, "invalid lastDeployedAt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var reg ProxyRegistry
			err := json.Unmarshal([]byte(tt.input), &reg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
