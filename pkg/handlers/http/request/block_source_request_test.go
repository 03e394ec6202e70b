package request

import (
	"testing"
	"time"

	"github.com/NeuralTrust/ThreatGate/pkg/utils"
	"github.com/stretchr/testify/assert"
)

func ptr(v int64) *int64 { return &v }

func TestBlockSourceRequest_Validate(t *testing.T) {
	hash := utils.SourceHash("203.0.113.7")
	tests := []struct {
		name    string
		req     BlockSourceRequest
		wantErr bool
	}{
		{"ip", BlockSourceRequest{IP: "203.0.113.7", Reason: "abuse"}, false},
		{"hash", BlockSourceRequest{SourceHash: hash, Reason: "abuse", DurationSeconds: ptr(3600)}, false},
		{"both", BlockSourceRequest{IP: "203.0.113.7", SourceHash: hash, Reason: "abuse"}, true},
		{"neither", BlockSourceRequest{Reason: "abuse"}, true},
		{"bad ip", BlockSourceRequest{IP: "300.1.1.1", Reason: "abuse"}, true},
		{"bad hash", BlockSourceRequest{SourceHash: "0x1234", Reason: "abuse"}, true},
		{"no reason", BlockSourceRequest{IP: "203.0.113.7", Reason: "  "}, true},
		{"zero duration", BlockSourceRequest{IP: "203.0.113.7", Reason: "abuse", DurationSeconds: ptr(0)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBlockSourceRequest_HashAndDuration(t *testing.T) {
	req := BlockSourceRequest{IP: "::ffff:203.0.113.7", Reason: "abuse"}
	assert.Equal(t, utils.SourceHash("203.0.113.7"), req.Hash())
	assert.Nil(t, req.Duration())

	req = BlockSourceRequest{SourceHash: "0xABCDEF" + "0123456789abcdef0123456789abcdef0123456789abcdef0123456789", DurationSeconds: ptr(90)}
	assert.Equal(t, "0xabcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789", req.Hash())
	assert.Equal(t, 90*time.Second, *req.Duration())
}
