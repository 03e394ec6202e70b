package dependency_container

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/NeuralTrust/ThreatGate/pkg/app/blocklist"
	"github.com/NeuralTrust/ThreatGate/pkg/app/challenge"
	"github.com/NeuralTrust/ThreatGate/pkg/app/decision"
	"github.com/NeuralTrust/ThreatGate/pkg/app/detector"
	"github.com/NeuralTrust/ThreatGate/pkg/app/securityevent"
	"github.com/NeuralTrust/ThreatGate/pkg/app/telemetry"
	"github.com/NeuralTrust/ThreatGate/pkg/app/threat"
	"github.com/NeuralTrust/ThreatGate/pkg/config"
	domainThreat "github.com/NeuralTrust/ThreatGate/pkg/domain/threat"
	handlers "github.com/NeuralTrust/ThreatGate/pkg/handlers/http"
	wsHandlers "github.com/NeuralTrust/ThreatGate/pkg/handlers/websocket"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/auth/jwt"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/cache"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/cache/event"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/cache/subscriber"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/counter"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/database"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/fingerprint"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/geo"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/httpx"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/ledger"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/prometheus"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/repository"
	infraTelemetry "github.com/NeuralTrust/ThreatGate/pkg/infra/telemetry"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/telemetry/kafka"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/telemetry/webhook"
	infraWebsocket "github.com/NeuralTrust/ThreatGate/pkg/infra/websocket"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/worker"
	"github.com/NeuralTrust/ThreatGate/pkg/server/middleware"
	"github.com/NeuralTrust/ThreatGate/pkg/utils"
	"github.com/sirupsen/logrus"
)

const localCounterRetention = time.Hour

type Container struct {
	Cache                  cache.Client
	LedgerCache            cache.Client
	RedisListener          cache.EventListener
	RedisPublisher         cache.EventPublisher
	HandlerTransport       handlers.HandlerTransport
	WSHandlerTransport     wsHandlers.HandlerTransport
	PanicRecoverMiddleware middleware.Middleware
	AdminAuthMiddleware    middleware.Middleware
	ThreatGuardMiddleware  middleware.Middleware
	WebSocketMiddleware    middleware.Middleware
	JWTManager             jwt.Manager
	Ledger                 *ledger.CachedLedger
	Engine                 threat.Engine
	Lifecycle              blocklist.Lifecycle
	Detector               detector.Detector
	Recorder               securityevent.Recorder
	Pipeline               decision.Pipeline
	Dispatcher             telemetry.Dispatcher
	Hub                    *infraWebsocket.Hub
	GeoLocator             geo.Locator
	Workers                []worker.Worker
}

type ContainerDI struct {
	Cfg            *config.Config
	Logger         *logrus.Logger
	DB             *database.DB
	EventsRegistry map[string]reflect.Type
}

func NewContainer(di ContainerDI) (*Container, error) {
	cfg := di.Cfg
	if cfg.Ledger.HMACKey == "" {
		return nil, errors.New("ledger.hmac_key is required")
	}

	cacheInstance, err := cache.NewClient(cache.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		TLS:      cfg.Redis.TLS,
	}, di.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %v", err)
	}

	ledgerCache, err := cache.NewClient(cache.Config{
		Host:     cfg.Ledger.Host,
		Port:     cfg.Ledger.Port,
		Password: cfg.Ledger.Password,
		DB:       cfg.Ledger.DB,
		TLS:      cfg.Ledger.TLS,
	}, di.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ledger connection: %v", err)
	}

	redisPublisher := cache.NewRedisEventPublisher(cacheInstance)
	redisListener := cache.NewRedisEventListener(di.Logger, cacheInstance, di.EventsRegistry)

	policy := domainThreat.DefaultPolicy()
	instanceID := cfg.Server.InstanceID

	// counters
	localCounters := cacheInstance.CreateTTLMap(cache.LocalCounterTTLName, localCounterRetention)
	store := counter.NewFallbackStore(
		di.Logger,
		counter.NewRedisStore(cacheInstance.RedisClient()),
		counter.NewMemoryStore(localCounters),
		httpx.NewCircuitBreaker("counter_store", cfg.Threat.StoreBreakerTimeout, cfg.Threat.StoreBreakerFailures),
	)

	// ledger
	cachedLedger := ledger.NewCachedLedger(
		di.Logger,
		ledger.NewRedisLedger(di.Logger, ledgerCache.RedisClient(), cfg.Ledger.HMACKey, instanceID),
		httpx.NewCircuitBreaker("ledger", cfg.Ledger.BreakerTimeout, cfg.Ledger.BreakerFailures),
		cacheInstance,
		ledger.CachedLedgerConfig{
			ReadTimeout:       cfg.Ledger.ReadTimeout,
			WriteTimeout:      cfg.Ledger.WriteTimeout,
			BlockCacheTTL:     cfg.Ledger.BlockCacheTTL,
			SignatureCacheTTL: cfg.Ledger.SignatureCacheTTL,
		},
	)

	// repository
	blockRepository := repository.NewBlockedSourceRepository(di.DB.DB)
	eventRepository := repository.NewSecurityEventRepository(di.DB.DB)
	patternRepository := repository.NewAttackPatternRepository(di.DB.DB)

	// workers
	dropHook := worker.WithDropHook(func(name string) {
		prometheus.WorkerTasksDropped.WithLabelValues(name).Inc()
	})
	telemetryPool := worker.NewWorker(di.Logger, "telemetry", 1000, dropHook)
	retryPool := worker.NewWorker(di.Logger, "ledger_retry", 1000, dropHook)
	eventPool := worker.NewWorker(di.Logger, "security_events", cfg.SecurityEvents.QueueSize, dropHook)
	telemetryPool.StartWorkers(2)
	retryPool.StartWorkers(cfg.Blocklist.Workers)
	eventPool.StartWorkers(cfg.SecurityEvents.Workers)

	// telemetry
	exporterLocator := infraTelemetry.NewProviderLocator(infraTelemetry.WithExporters(
		kafka.NewKafkaExporter(di.Logger),
		webhook.NewWebhookExporter(),
	))
	exporters, err := exporterLocator.Build(cfg.Telemetry.Exporters)
	if err != nil {
		return nil, fmt.Errorf("failed to build telemetry exporters: %w", err)
	}
	dispatcher := telemetry.NewDispatcher(di.Logger, exporters, telemetryPool, instanceID)

	geoLocator, err := geo.NewLocator(di.Logger, cfg.GeoIP.DatabasePath)
	if err != nil {
		return nil, err
	}

	whitelist, err := utils.ParseCIDRs(cfg.Threat.Whitelist)
	if err != nil {
		return nil, fmt.Errorf("invalid threat.whitelist: %w", err)
	}

	// service
	engine := threat.NewEngine(di.Logger, store, cachedLedger, policy, cfg.Challenge.ReliefRateCredits)
	challenges := challenge.NewManager(di.Logger, store, engine, challenge.Config{
		TTL:             cfg.Challenge.TTL,
		PassTTL:         cfg.Challenge.PassTTL,
		MaxFailures:     cfg.Challenge.MaxFailures,
		FailureWindow:   cfg.Challenge.FailureWindow,
		BlockDuration:   cfg.Challenge.BlockDuration,
		IssueRatePerMin: cfg.Challenge.IssueRatePerMin,
		IssueBurst:      cfg.Challenge.IssueBurst,
	})
	lifecycle := blocklist.NewLifecycle(
		di.Logger,
		blockRepository,
		cachedLedger,
		cachedLedger,
		redisPublisher,
		retryPool,
		engine,
		blocklist.Config{
			AutoBlockDuration: policy.AutoBlockDuration,
			BatchSize:         cfg.Blocklist.SyncBatchSize,
			InstanceID:        instanceID,
		},
		blocklist.WithExports(dispatcher),
	)
	attackDetector := detector.NewDetector(
		di.Logger,
		store,
		patternRepository,
		cachedLedger,
		redisPublisher,
		dispatcher,
		detector.Config{
			Enabled:        cfg.Detector.Enabled,
			Window:         cfg.Detector.Window,
			MinSources:     cfg.Detector.MinSources,
			MaxSourcesScan: cfg.Detector.MaxSourcesScan,
			BatchSize:      cfg.Blocklist.SyncBatchSize,
			InstanceID:     instanceID,
		},
	)
	recorder := securityevent.NewRecorder(
		di.Logger,
		eventRepository,
		eventPool,
		geoLocator,
		redisPublisher,
		dispatcher,
		blockRepository,
		patternRepository,
		securityevent.Config{
			Retention:  cfg.SecurityEvents.Retention,
			InstanceID: instanceID,
		},
	)
	pipeline := decision.NewPipeline(
		di.Logger,
		engine,
		challenges,
		cachedLedger,
		lifecycle,
		attackDetector,
		recorder,
		policy,
		decision.Config{Whitelist: whitelist},
	)

	// subscribers
	hub := infraWebsocket.NewHub(di.Logger, cfg.Stream.MaxSubscribers)
	blockStatusSubscriber := subscriber.NewBlockStatusChangedEventSubscriber(di.Logger, cachedLedger, instanceID)
	signaturesSubscriber := subscriber.NewSignaturesChangedEventSubscriber(di.Logger, cachedLedger)
	threatDecisionSubscriber := subscriber.NewThreatDecisionEventSubscriber(hub)

	cache.RegisterEventSubscriber[event.BlockStatusChangedEvent](redisListener, blockStatusSubscriber)
	cache.RegisterEventSubscriber[event.SignaturesChangedEvent](redisListener, signaturesSubscriber)
	cache.RegisterEventSubscriber[event.ThreatDecisionEvent](redisListener, threatDecisionSubscriber)

	jwtManager := jwt.NewJwtManager(cfg.Server.SecretKey)
	var sessionTokens jwt.Manager
	if cfg.Threat.SessionSecret != "" {
		sessionTokens = jwt.NewJwtManager(cfg.Threat.SessionSecret)
	}
	fingerprintBuilder := fingerprint.NewBuilder(cfg.Threat.IPHeaders, sessionTokens)

	upstreamClient := httpx.NewUpstreamClient(httpx.WithTimeout(cfg.Upstream.Timeout))

	// WebSocket handler transport
	wsHandlerTransport := &wsHandlers.HandlerTransportDTO{
		EventStreamHandler: wsHandlers.NewEventStreamHandler(
			di.Logger,
			hub,
			cfg.Stream.PingPeriod,
			cfg.Stream.PongWait,
		),
	}

	// Handler Transport
	handlerTransport := &handlers.HandlerTransportDTO{
		// Proxy
		ForwardedHandler: handlers.NewForwardedHandler(
			di.Logger,
			upstreamClient,
			engine,
			cfg.Upstream.URL,
			cfg.Threat.LoginPaths,
		),
		IssueChallengeHandler:  handlers.NewIssueChallengeHandler(di.Logger, challenges, fingerprintBuilder),
		AnswerChallengeHandler: handlers.NewAnswerChallengeHandler(di.Logger, challenges, fingerprintBuilder),
		ChallengeStatusHandler: handlers.NewChallengeStatusHandler(di.Logger, challenges, fingerprintBuilder),
		// Blocklist
		BlockSourceHandler:   handlers.NewBlockSourceHandler(di.Logger, lifecycle),
		UnblockSourceHandler: handlers.NewUnblockSourceHandler(di.Logger, lifecycle),
		ListBlocksHandler:    handlers.NewListBlocksHandler(di.Logger, lifecycle),
		CheckSourceHandler:   handlers.NewCheckSourceHandler(di.Logger, lifecycle),
		// Security
		SecurityStatsHandler:      handlers.NewSecurityStatsHandler(di.Logger, recorder),
		ListSecurityEventsHandler: handlers.NewListSecurityEventsHandler(di.Logger, recorder),
		ListSignaturesHandler:     handlers.NewListSignaturesHandler(di.Logger, attackDetector),
		DetectorStatsHandler:      handlers.NewDetectorStatsHandler(di.Logger, attackDetector),
		// Maintenance
		RunSweepHandler:     handlers.NewRunSweepHandler(di.Logger, lifecycle),
		RunSyncHandler:      handlers.NewRunSyncHandler(di.Logger, lifecycle, attackDetector),
		VerifyLedgerHandler: handlers.NewVerifyLedgerHandler(di.Logger, cachedLedger),
		// Version
		GetVersionHandler: handlers.NewGetVersionHandler(di.Logger),
	}

	container := &Container{
		Cache:                  cacheInstance,
		LedgerCache:            ledgerCache,
		RedisListener:          redisListener,
		RedisPublisher:         redisPublisher,
		HandlerTransport:       handlerTransport,
		WSHandlerTransport:     wsHandlerTransport,
		PanicRecoverMiddleware: middleware.NewPanicRecoverMiddleware(di.Logger),
		AdminAuthMiddleware:    middleware.NewAdminAuthMiddleware(di.Logger, jwtManager),
		ThreatGuardMiddleware: middleware.NewThreatGuardMiddleware(
			di.Logger,
			pipeline,
			fingerprintBuilder,
			cfg.Threat.SkipPaths,
		),
		WebSocketMiddleware: middleware.NewWebsocketMiddleware(di.Logger),
		JWTManager:          jwtManager,
		Ledger:              cachedLedger,
		Engine:              engine,
		Lifecycle:           lifecycle,
		Detector:            attackDetector,
		Recorder:            recorder,
		Pipeline:            pipeline,
		Dispatcher:          dispatcher,
		Hub:                 hub,
		GeoLocator:          geoLocator,
		Workers:             []worker.Worker{eventPool, retryPool, telemetryPool},
	}

	return container, nil
}

// Close drains the worker pools in dependency order and releases connections.
func (c *Container) Close(logger *logrus.Logger) {
	for _, w := range c.Workers {
		w.Shutdown()
	}
	c.Dispatcher.Close()
	if err := c.GeoLocator.Close(); err != nil {
		logger.WithError(err).Warn("failed to close geoip database")
	}
	if err := c.LedgerCache.Close(); err != nil {
		logger.WithError(err).Warn("failed to close ledger connection")
	}
	if err := c.Cache.Close(); err != nil {
		logger.WithError(err).Warn("failed to close cache")
	}
}
