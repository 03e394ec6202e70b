package ledger

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildChain(t *testing.T, key []byte, n int) []string {
	t.Helper()
	h := genesis()
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		tx := Tx{Kind: TxBlock, Subject: "0xabc", Payload: `{"reason":"x"}`, Timestamp: int64(1700000000 + i), Reporter: "gw-1"}
		tx.seal(key, h)
		h = head{Seq: tx.Seq, Hash: tx.Hash}
		b, err := json.Marshal(tx)
		require.NoError(t, err)
		out = append(out, string(b))
	}
	return out
}

func TestVerifyChain_Valid(t *testing.T) {
	key := []byte("secret")
	raw := buildChain(t, key, 5)

	report := VerifyChain(key, raw)
	assert.True(t, report.Valid)
	assert.Equal(t, int64(5), report.Length)
	assert.NotEqual(t, genesisHash, report.Head)
}

func TestVerifyChain_Empty(t *testing.T) {
	report := VerifyChain([]byte("k"), nil)
	assert.True(t, report.Valid)
	assert.Zero(t, report.Length)
	assert.Equal(t, genesisHash, report.Head)
}

func TestVerifyChain_DetectsTampering(t *testing.T) {
	key := []byte("secret")

	tests := []struct {
		name   string
		mutate func(raw []string) []string
		at     int64
	}{
		{
			name: "payload edited",
			mutate: func(raw []string) []string {
				var tx Tx
				_ = json.Unmarshal([]byte(raw[2]), &tx)
				tx.Payload = `{"reason":"y"}`
				b, _ := json.Marshal(tx)
				raw[2] = string(b)
				return raw
			},
			at: 3,
		},
		{
			name: "record removed",
			mutate: func(raw []string) []string {
				return append(raw[:1], raw[2:]...)
			},
			at: 3,
		},
		{
			name: "resealed with another key",
			mutate: func(raw []string) []string {
				var tx Tx
				_ = json.Unmarshal([]byte(raw[3]), &tx)
				tx.seal([]byte("other"), head{Seq: tx.Seq - 1, Hash: tx.Prev})
				b, _ := json.Marshal(tx)
				raw[3] = string(b)
				return raw
			},
			at: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := tt.mutate(buildChain(t, key, 5))
			report := VerifyChain(key, raw)
			assert.False(t, report.Valid)
			assert.Equal(t, tt.at, report.BrokenAt)
			assert.NotEmpty(t, report.BrokenErr)
		})
	}
}
