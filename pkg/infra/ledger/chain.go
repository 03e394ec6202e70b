package ledger

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/NeuralTrust/ThreatGate/pkg/domain/ledger"
	"github.com/NeuralTrust/ThreatGate/pkg/utils"
)

type TxKind string

const (
	TxBlock     TxKind = "block"
	TxUnblock   TxKind = "unblock"
	TxSignature TxKind = "signature"

	genesisHash = "0x0"
)

// Tx is one record of the append-only ledger log. Hash covers every other field
// except MAC, and MAC authenticates Hash with the shared key.
type Tx struct {
	Seq       int64  `json:"seq"`
	Kind      TxKind `json:"kind"`
	Subject   string `json:"subject"`
	Payload   string `json:"payload"`
	Timestamp int64  `json:"ts"`
	Reporter  string `json:"reporter"`
	Prev      string `json:"prev"`
	Hash      string `json:"hash"`
	MAC       string `json:"mac"`
}

type head struct {
	Seq  int64  `json:"seq"`
	Hash string `json:"hash"`
}

func (t *Tx) digest() string {
	parts := []string{
		strconv.FormatInt(t.Seq, 10),
		string(t.Kind),
		t.Subject,
		t.Payload,
		strconv.FormatInt(t.Timestamp, 10),
		t.Reporter,
		t.Prev,
	}
	return utils.Keccak256Hex(strings.Join(parts, "|"))
}

func mac(key []byte, hash string) string {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(hash))
	return hex.EncodeToString(m.Sum(nil))
}

// seal links t after h and signs it.
func (t *Tx) seal(key []byte, h head) {
	t.Seq = h.Seq + 1
	t.Prev = h.Hash
	t.Hash = t.digest()
	t.MAC = mac(key, t.Hash)
}

func (t *Tx) check(key []byte, prev head) error {
	if t.Seq != prev.Seq+1 {
		return fmt.Errorf("sequence gap: expected %d got %d", prev.Seq+1, t.Seq)
	}
	if t.Prev != prev.Hash {
		return fmt.Errorf("previous hash mismatch at %d", t.Seq)
	}
	if t.digest() != t.Hash {
		return fmt.Errorf("content hash mismatch at %d", t.Seq)
	}
	if !hmac.Equal([]byte(mac(key, t.Hash)), []byte(t.MAC)) {
		return fmt.Errorf("mac mismatch at %d", t.Seq)
	}
	return nil
}

func genesis() head {
	return head{Seq: 0, Hash: genesisHash}
}

// VerifyChain walks raw JSON transactions in order and reports the first broken link.
func VerifyChain(key []byte, raw []string) *ledger.VerifyReport {
	report := &ledger.VerifyReport{Head: genesisHash, Valid: true}
	prev := genesis()
	for i, item := range raw {
		var tx Tx
		if err := json.Unmarshal([]byte(item), &tx); err != nil {
			report.Valid = false
			report.BrokenAt = int64(i + 1)
			report.BrokenErr = fmt.Sprintf("undecodable record: %v", err)
			return report
		}
		if err := tx.check(key, prev); err != nil {
			report.Valid = false
			report.BrokenAt = tx.Seq
			report.BrokenErr = err.Error()
			return report
		}
		prev = head{Seq: tx.Seq, Hash: tx.Hash}
		report.Length = tx.Seq
		report.Head = tx.Hash
	}
	return report
}
