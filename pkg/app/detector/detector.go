package detector

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	appTelemetry "github.com/NeuralTrust/ThreatGate/pkg/app/telemetry"
	"github.com/NeuralTrust/ThreatGate/pkg/domain/counter"
	"github.com/NeuralTrust/ThreatGate/pkg/domain/ledger"
	"github.com/NeuralTrust/ThreatGate/pkg/domain/signature"
	domainTelemetry "github.com/NeuralTrust/ThreatGate/pkg/domain/telemetry"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/cache"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/cache/channel"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/cache/event"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/prometheus"
	"github.com/NeuralTrust/ThreatGate/pkg/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	activeBucketTTL = 6 * time.Minute
	scanParallelism = 16
	maxSeverity     = 10
)

type Config struct {
	Enabled        bool
	Window         time.Duration
	MinSources     int
	MaxSourcesScan int
	BatchSize      int
	InstanceID     string
}

type Cluster struct {
	Descriptor   signature.Descriptor `json:"descriptor"`
	Sources      int                  `json:"sources"`
	Requests     int64                `json:"requests"`
	Severity     int                  `json:"severity"`
	AboveMinimum bool                 `json:"above_minimum"`
}

type RunReport struct {
	ActiveSources int `json:"active_sources"`
	Clusters      int `json:"clusters"`
	Minted        int `json:"minted"`
	Duplicates    int `json:"duplicates"`
}

type SyncReport struct {
	Synced int `json:"synced"`
	Failed int `json:"failed"`
}

type Stats struct {
	ActiveSources  int       `json:"active_sources"`
	Clusters       int       `json:"clusters"`
	LargestCluster int       `json:"largest_cluster"`
	Signatures     int64     `json:"signatures"`
	Top            []Cluster `json:"top,omitempty"`
}

//go:generate mockery --name=Detector --dir=. --output=./mocks --filename=detector_mock.go --case=underscore --with-expecter
type Detector interface {
	// Observe marks a source as active in the current minute bucket.
	Observe(ctx context.Context, sourceHash string)
	// Run groups the sources of the trailing window and mints a signature for
	// every group that is large enough. Safe to run on many instances at once.
	Run(ctx context.Context) (*RunReport, error)
	SyncPending(ctx context.Context) (*SyncReport, error)
	Stats(ctx context.Context) (*Stats, error)
	Signatures(ctx context.Context, limit int) ([]signature.AttackPattern, error)
}

type detector struct {
	logger    *logrus.Logger
	store     counter.Store
	repo      signature.Repository
	ledger    ledger.Ledger
	publisher cache.EventPublisher
	exports   appTelemetry.Dispatcher
	cfg       Config
	now       func() time.Time
}

type Option func(*detector)

func WithTimeProvider(now func() time.Time) Option {
	return func(d *detector) { d.now = now }
}

func NewDetector(
	logger *logrus.Logger,
	store counter.Store,
	repo signature.Repository,
	l ledger.Ledger,
	publisher cache.EventPublisher,
	exports appTelemetry.Dispatcher,
	cfg Config,
	opts ...Option,
) Detector {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	d := &detector{
		logger:    logger,
		store:     store,
		repo:      repo,
		ledger:    l,
		publisher: publisher,
		exports:   exports,
		cfg:       cfg,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *detector) Observe(ctx context.Context, sourceHash string) {
	if !d.cfg.Enabled {
		return
	}
	bucket := d.now().Unix() / 60
	if err := d.store.SetAdd(ctx, counter.DetectorActiveKey(bucket), sourceHash, activeBucketTTL); err != nil {
		d.logger.WithError(err).Debug("failed to record active source")
	}
}

func (d *detector) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{}
	if !d.cfg.Enabled {
		return report, nil
	}
	now := d.now()
	sources, clusters, err := d.scan(ctx, now)
	if err != nil {
		return nil, err
	}
	report.ActiveSources = sources
	report.Clusters = len(clusters)

	bucket := now.Unix() / int64(d.cfg.Window/time.Second)
	for _, c := range clusters {
		if !c.AboveMinimum {
			continue
		}
		hash := c.Descriptor.Hash()
		claimed, err := d.store.SetIfAbsent(ctx, counter.DetectorMintedKey(hash), strconv.FormatInt(bucket, 10), d.cfg.Window)
		if err != nil {
			d.logger.WithError(err).Warn("failed to claim signature mint")
			continue
		}
		if !claimed {
			report.Duplicates++
			continue
		}
		d.mint(ctx, c, bucket, now)
		report.Minted++
	}
	return report, nil
}

func (d *detector) mint(ctx context.Context, c Cluster, bucket int64, now time.Time) {
	pattern := &signature.AttackPattern{
		ID:              uuid.New(),
		PatternHash:     c.Descriptor.Hash(),
		WindowBucket:    bucket,
		Endpoints:       c.Descriptor.Endpoints,
		UserAgentClass:  c.Descriptor.UserAgentClass,
		UserAgentDigest: c.Descriptor.UserAgentDigest,
		Cadence:         string(c.Descriptor.Cadence),
		Severity:        c.Severity,
		SourceCount:     c.Sources,
		RequestCount:    c.Requests,
		DetectedAt:      now,
		ReportedBy:      d.cfg.InstanceID,
		Pattern:         c.Descriptor.Key(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	log := d.logger.WithFields(logrus.Fields{
		"pattern_hash": pattern.PatternHash,
		"sources":      c.Sources,
		"severity":     c.Severity,
		"endpoints":    len(c.Descriptor.Endpoints),
	})
	log.Warn("coordinated attack detected")
	prometheus.SignaturesMintedTotal.Inc()

	if err := d.repo.Save(ctx, pattern); err != nil {
		log.WithError(err).Error("failed to store attack pattern")
	}
	d.exports.Dispatch(domainTelemetry.KindAttackSignature, signature.Pattern{
		Descriptor:   c.Descriptor,
		SourceCount:  c.Sources,
		RequestCount: c.Requests,
		Severity:     c.Severity,
		DetectedAt:   now.UTC().Format(time.RFC3339),
	})
	if err := d.report(ctx, pattern); err != nil {
		log.WithError(err).Warn("attack signature pending ledger sync")
	}
}

// report writes pattern to the ledger and tells peers to refresh their signatures.
func (d *detector) report(ctx context.Context, pattern *signature.AttackPattern) error {
	ref, err := d.ledger.AddSignature(ctx, pattern.Pattern, pattern.Severity)
	if err != nil {
		return err
	}
	pattern.LedgerSynced = true
	pattern.LedgerRef = string(ref)
	if err := d.repo.MarkSynced(ctx, pattern.ID, string(ref)); err != nil {
		d.logger.WithError(err).Error("failed to mark attack pattern as synced")
	}
	evt := event.SignaturesChangedEvent{
		PatternHash: pattern.PatternHash,
		Severity:    pattern.Severity,
		Origin:      d.cfg.InstanceID,
	}
	if err := d.publisher.Publish(ctx, channel.ThreatEventsChannel, evt); err != nil {
		d.logger.WithError(err).Warn("failed to publish signature change")
	}
	return nil
}

func (d *detector) SyncPending(ctx context.Context) (*SyncReport, error) {
	pending, err := d.repo.ListPendingSync(ctx, d.cfg.BatchSize)
	if err != nil {
		return nil, err
	}
	report := &SyncReport{}
	for i := range pending {
		if err := d.report(ctx, &pending[i]); err != nil {
			report.Failed++
			continue
		}
		report.Synced++
	}
	prometheus.LedgerPendingSync.WithLabelValues("signatures").Set(float64(report.Failed))
	return report, nil
}

func (d *detector) Stats(ctx context.Context) (*Stats, error) {
	sources, clusters, err := d.scan(ctx, d.now())
	if err != nil {
		return nil, err
	}
	stats := &Stats{ActiveSources: sources, Clusters: len(clusters)}
	if len(clusters) > 0 {
		stats.LargestCluster = clusters[0].Sources
		top := clusters
		if len(top) > 5 {
			top = top[:5]
		}
		stats.Top = top
	}
	if n, err := d.repo.Count(ctx); err == nil {
		stats.Signatures = n
	}
	return stats, nil
}

func (d *detector) Signatures(ctx context.Context, limit int) ([]signature.AttackPattern, error) {
	return d.repo.List(ctx, limit)
}

// scan returns the number of active sources and their clusters, largest first.
func (d *detector) scan(ctx context.Context, now time.Time) (int, []Cluster, error) {
	sources, err := d.activeSources(ctx, now)
	if err != nil {
		return 0, nil, err
	}

	var (
		mu     sync.Mutex
		groups = make(map[string]*Cluster)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scanParallelism)
	for _, source := range sources {
		g.Go(func() error {
			desc, requests, ok := d.profile(gctx, source)
			if !ok {
				return nil
			}
			key := desc.Key()
			mu.Lock()
			defer mu.Unlock()
			c, found := groups[key]
			if !found {
				c = &Cluster{Descriptor: desc}
				groups[key] = c
			}
			c.Sources++
			c.Requests += requests
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, nil, err
	}

	clusters := make([]Cluster, 0, len(groups))
	for _, c := range groups {
		c.Severity = Severity(c.Sources, c.Requests)
		c.AboveMinimum = c.Sources >= d.cfg.MinSources
		clusters = append(clusters, *c)
	}
	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].Sources != clusters[j].Sources {
			return clusters[i].Sources > clusters[j].Sources
		}
		return clusters[i].Descriptor.Key() < clusters[j].Descriptor.Key()
	})
	return len(sources), clusters, nil
}

func (d *detector) activeSources(ctx context.Context, now time.Time) ([]string, error) {
	minutes := int64(d.cfg.Window / time.Minute)
	if minutes <= 0 {
		minutes = 1
	}
	current := now.Unix() / 60
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for i := int64(0); i < minutes; i++ {
		members, err := d.store.SetMembers(ctx, counter.DetectorActiveKey(current-i))
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
			if d.cfg.MaxSourcesScan > 0 && len(out) >= d.cfg.MaxSourcesScan {
				return out, nil
			}
		}
	}
	return out, nil
}

// profile builds the similarity key of one source from its counters.
func (d *detector) profile(ctx context.Context, sourceHash string) (signature.Descriptor, int64, bool) {
	endpoints, err := d.store.ListAll(ctx, counter.PatternKey(sourceHash))
	if err != nil || len(endpoints) == 0 {
		return signature.Descriptor{}, 0, false
	}
	requests, _, err := d.store.GetInt(ctx, counter.RateKey(sourceHash))
	if err != nil {
		return signature.Descriptor{}, 0, false
	}
	agents, err := d.store.SetMembers(ctx, counter.UserAgentKey(sourceHash))
	if err != nil {
		return signature.Descriptor{}, 0, false
	}
	class, digest := userAgentShape(agents)
	return signature.NewDescriptor(endpoints, class, digest, signature.CadenceFor(requests)), requests, true
}

// userAgentShape returns the class and digest shared by agents. Several agents
// collapse to their most common class and the mixed digest.
func userAgentShape(agents []string) (string, string) {
	switch len(agents) {
	case 0:
		return utils.UserAgentClass(""), utils.UserAgentDigest("")
	case 1:
		return utils.UserAgentClass(agents[0]), utils.UserAgentDigest(agents[0])
	}
	counts := make(map[string]int, len(agents))
	for _, a := range agents {
		counts[utils.UserAgentClass(a)]++
	}
	best, bestN := "", 0
	for class, n := range counts {
		if n > bestN || (n == bestN && class < best) {
			best, bestN = class, n
		}
	}
	return best, signature.MixedUserAgents
}

// Severity rates a cluster from 6 to 10 by its size, plus up to two points for
// the request volume per source.
func Severity(sources int, requests int64) int {
	severity := 6
	switch {
	case sources >= 200:
		severity = 10
	case sources >= 150:
		severity = 9
	case sources >= 100:
		severity = 8
	case sources >= 75:
		severity = 7
	}
	if sources > 0 {
		perSource := requests / int64(sources)
		switch {
		case perSource >= 20:
			severity += 2
		case perSource >= 10:
			severity++
		}
	}
	if severity > maxSeverity {
		return maxSeverity
	}
	return severity
}
