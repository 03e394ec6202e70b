package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/NeuralTrust/ThreatGate/pkg/domain"
	"github.com/NeuralTrust/ThreatGate/pkg/domain/ledger"
	"github.com/NeuralTrust/ThreatGate/pkg/utils"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const (
	blockKeyPattern = "ledger:block:%s"
	blocksSetKey    = "ledger:blocks"
	signaturesKey   = "ledger:signatures"
	chainKey        = "ledger:chain"
	headKey         = "ledger:head"

	maxAppendRetries = 8
)

func blockKey(sourceHash string) string {
	return fmt.Sprintf(blockKeyPattern, sourceHash)
}

// RedisLedger keeps the shared blocklist in a redis instance every gateway
// can reach. Each mutation appends a sealed Tx to ledger:chain and updates the
// materialized state in the same MULTI, guarded by WATCH on the chain head.
type RedisLedger struct {
	logger   *logrus.Logger
	client   *redis.Client
	key      []byte
	reporter string
	now      func() time.Time
}

type Option func(*RedisLedger)

func WithTimeProvider(now func() time.Time) Option {
	return func(l *RedisLedger) { l.now = now }
}

var _ ledger.Ledger = (*RedisLedger)(nil)

func NewRedisLedger(logger *logrus.Logger, client *redis.Client, hmacKey, reporter string, opts ...Option) *RedisLedger {
	l := &RedisLedger{
		logger:   logger,
		client:   client,
		key:      []byte(hmacKey),
		reporter: reporter,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrLedgerUnavailable, op, err)
}

func (l *RedisLedger) IsBlocked(ctx context.Context, sourceHash string) (bool, error) {
	entry, err := l.Lookup(ctx, sourceHash)
	if err != nil {
		return false, err
	}
	return entry.Active(l.now()), nil
}

func (l *RedisLedger) Lookup(ctx context.Context, sourceHash string) (*ledger.Entry, error) {
	raw, err := l.client.Get(ctx, blockKey(sourceHash)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("lookup", err)
	}
	var entry ledger.Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, fmt.Errorf("decode ledger entry: %w", err)
	}
	return &entry, nil
}

func (l *RedisLedger) Block(
	ctx context.Context,
	sourceHash string,
	expiresAt time.Time,
	reason string,
	manual bool,
) (ledger.TxRef, error) {
	now := l.now()
	entry := ledger.Entry{
		SourceHash: sourceHash,
		Reason:     reason,
		Manual:     manual,
		BlockedAt:  now.Unix(),
	}
	if !expiresAt.IsZero() {
		entry.ExpiresAt = expiresAt.Unix()
	}

	tx := Tx{
		Kind:      TxBlock,
		Subject:   sourceHash,
		Timestamp: now.Unix(),
		Reporter:  l.reporter,
	}
	err := l.append(ctx, []string{blockKey(sourceHash)}, &tx, func(_ *redis.Tx) (bool, error) {
		entry.TxRef = ""
		payload, err := json.Marshal(entry)
		if err != nil {
			return false, err
		}
		tx.Payload = string(payload)
		return true, nil
	}, func(pipe redis.Pipeliner) error {
		entry.TxRef = ledger.TxRef(tx.Hash)
		b, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		pipe.Set(ctx, blockKey(sourceHash), b, 0)
		pipe.SAdd(ctx, blocksSetKey, sourceHash)
		return nil
	})
	if err != nil {
		return "", err
	}
	l.logger.WithFields(logrus.Fields{
		"source_hash": sourceHash,
		"manual":      manual,
		"tx":          tx.Hash,
	}).Info("ledger block appended")
	return ledger.TxRef(tx.Hash), nil
}

// Unblock is idempotent: an unknown source returns an empty ref without appending.
func (l *RedisLedger) Unblock(ctx context.Context, sourceHash string) (ledger.TxRef, error) {
	tx := Tx{
		Kind:      TxUnblock,
		Subject:   sourceHash,
		Timestamp: l.now().Unix(),
		Reporter:  l.reporter,
	}
	appended := false
	err := l.append(ctx, []string{blockKey(sourceHash)}, &tx, func(rtx *redis.Tx) (bool, error) {
		n, err := rtx.Exists(ctx, blockKey(sourceHash)).Result()
		if err != nil {
			return false, err
		}
		appended = n > 0
		return appended, nil
	}, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, blockKey(sourceHash))
		pipe.SRem(ctx, blocksSetKey, sourceHash)
		return nil
	})
	if err != nil || !appended {
		return "", err
	}
	return ledger.TxRef(tx.Hash), nil
}

// AddSignature stores pattern once per pattern hash; later writers get the original ref.
func (l *RedisLedger) AddSignature(ctx context.Context, pattern string, severity int) (ledger.SignatureRef, error) {
	patternHash := utils.Keccak256Hex(pattern)
	now := l.now()
	sig := ledger.Signature{
		PatternHash: patternHash,
		Pattern:     pattern,
		Severity:    severity,
		ReportedAt:  now.Unix(),
		Reporter:    l.reporter,
	}
	tx := Tx{
		Kind:      TxSignature,
		Subject:   patternHash,
		Timestamp: now.Unix(),
		Reporter:  l.reporter,
	}

	var existing ledger.SignatureRef
	err := l.append(ctx, []string{signaturesKey}, &tx, func(rtx *redis.Tx) (bool, error) {
		raw, err := rtx.HGet(ctx, signaturesKey, patternHash).Result()
		if err == nil {
			var prev ledger.Signature
			if jsonErr := json.Unmarshal([]byte(raw), &prev); jsonErr == nil {
				existing = prev.Ref
			}
			return false, nil
		}
		if !errors.Is(err, redis.Nil) {
			return false, err
		}
		payload, err := json.Marshal(sig)
		if err != nil {
			return false, err
		}
		tx.Payload = string(payload)
		return true, nil
	}, func(pipe redis.Pipeliner) error {
		sig.Ref = ledger.SignatureRef(tx.Hash)
		b, err := json.Marshal(sig)
		if err != nil {
			return err
		}
		pipe.HSetNX(ctx, signaturesKey, patternHash, b)
		return nil
	})
	if err != nil {
		return "", err
	}
	if existing != "" {
		return existing, nil
	}
	return ledger.SignatureRef(tx.Hash), nil
}

func (l *RedisLedger) AllSignatures(ctx context.Context) ([]ledger.Signature, error) {
	raw, err := l.client.HGetAll(ctx, signaturesKey).Result()
	if err != nil {
		return nil, unavailable("signatures", err)
	}
	out := make([]ledger.Signature, 0, len(raw))
	for hash, item := range raw {
		var sig ledger.Signature
		if err := json.Unmarshal([]byte(item), &sig); err != nil {
			l.logger.WithField("pattern_hash", hash).WithError(err).Warn("skipping undecodable ledger signature")
			continue
		}
		out = append(out, sig)
	}
	return out, nil
}

// BlockedHashes lists every source hash with a materialized block entry.
func (l *RedisLedger) BlockedHashes(ctx context.Context) ([]string, error) {
	hashes, err := l.client.SMembers(ctx, blocksSetKey).Result()
	if err != nil {
		return nil, unavailable("blocks", err)
	}
	return hashes, nil
}

func (l *RedisLedger) Verify(ctx context.Context) (*ledger.VerifyReport, error) {
	raw, err := l.client.LRange(ctx, chainKey, 0, -1).Result()
	if err != nil {
		return nil, unavailable("verify", err)
	}
	report := VerifyChain(l.key, raw)
	if !report.Valid {
		l.logger.WithFields(logrus.Fields{
			"broken_at": report.BrokenAt,
			"error":     report.BrokenErr,
		}).Error("ledger chain integrity check failed")
	}
	return report, nil
}

// append seals tx after the current head and commits it with mutate. prepare runs
// inside WATCH and may veto the append by returning false.
func (l *RedisLedger) append(
	ctx context.Context,
	watch []string,
	tx *Tx,
	prepare func(rtx *redis.Tx) (bool, error),
	mutate func(pipe redis.Pipeliner) error,
) error {
	keys := append([]string{headKey}, watch...)
	for attempt := 0; attempt < maxAppendRetries; attempt++ {
		err := l.client.Watch(ctx, func(rtx *redis.Tx) error {
			ok, err := prepare(rtx)
			if err != nil || !ok {
				return err
			}
			h, err := readHead(ctx, rtx)
			if err != nil {
				return err
			}
			tx.seal(l.key, h)
			record, err := json.Marshal(tx)
			if err != nil {
				return err
			}
			next, err := json.Marshal(head{Seq: tx.Seq, Hash: tx.Hash})
			if err != nil {
				return err
			}
			_, err = rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.RPush(ctx, chainKey, record)
				pipe.Set(ctx, headKey, next, 0)
				return mutate(pipe)
			})
			return err
		}, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return unavailable(string(tx.Kind), err)
		}
		return nil
	}
	return unavailable(string(tx.Kind), errors.New("too much contention on ledger head"))
}

func readHead(ctx context.Context, rtx *redis.Tx) (head, error) {
	raw, err := rtx.Get(ctx, headKey).Result()
	if errors.Is(err, redis.Nil) {
		return genesis(), nil
	}
	if err != nil {
		return head{}, err
	}
	var h head
	if err := json.Unmarshal([]byte(raw), &h); err != nil {
		return head{}, fmt.Errorf("decode ledger head: %w", err)
	}
	return h, nil
}
