package sendtransactions

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dev-protocol/send-transactions/common/clock"
	"github.com/dev-protocol/send-transactions/common/retry"
	"github.com/dev-protocol/send-transactions/config"
	"github.com/dev-protocol/send-transactions/database"
	"github.com/dev-protocol/send-transactions/metrics"
	"github.com/dev-protocol/send-transactions/notifier"
	"github.com/dev-protocol/send-transactions/sender"
	"github.com/dev-protocol/send-transactions/store"
	"github.com/dev-protocol/send-transactions/store/memory"
	"github.com/dev-protocol/send-transactions/store/postgres"
	redisstore "github.com/dev-protocol/send-transactions/store/redis"
	"github.com/dev-protocol/send-transactions/wallet"
	"github.com/dev-protocol/send-transactions/worker"
)

// Stack is an engine together with the connections it was built over.
type Stack struct {
	Engine *sender.Engine
	DB     *database.DB
	Redis  goredis.UniversalClient

	closers []func() error
}

type StackOptions struct {
	Metrics sender.Metricer
	// Shared keeps one redis client for the process instead of dialing one
	// per send.
	Shared bool
	// Shutdown is called when a background component fails critically.
	Shutdown context.CancelCauseFunc
}

// NewStack opens what the store backend and journals need and builds an
// engine on top.
func NewStack(ctx context.Context, cfg *config.Config, opts StackOptions) (*Stack, error) {
	signer, err := wallet.FromConfig(cfg.Signer)
	if err != nil {
		return nil, fmt.Errorf("load signer: %w", err)
	}
	if opts.Shutdown == nil {
		opts.Shutdown = func(cause error) {
			log.Error("background component failed", "err", cause)
		}
	}

	s := &Stack{}
	opener, err := s.openStore(ctx, cfg, opts.Shared)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	journal, err := s.journals(ctx, cfg, opts.Shutdown)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	engine, err := sender.NewEngine(cfg, sender.Deps{
		Store:   opener,
		Signer:  signer,
		Journal: journal,
		Metrics: opts.Metrics,
		Clock:   clock.SystemClock,
	})
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.Engine = engine
	log.Info("engine ready", "from", engine.From(), "store", cfg.Store.Backend, "journal", cfg.Journal, "notify", cfg.Notify.Url != "")
	return s, nil
}

func (s *Stack) journals(ctx context.Context, cfg *config.Config, shutdown context.CancelCauseFunc) (sender.Journal, error) {
	var journals sender.Journals
	if cfg.Journal {
		db, err := s.database(ctx, cfg.MasterDB)
		if err != nil {
			return nil, err
		}
		journals = append(journals, sender.NewDatabaseJournal(db.Submissions, clock.SystemClock))
	}
	if cfg.Notify.Url != "" {
		n, err := notifier.NewNotifier(cfg.Notify, clock.SystemClock, shutdown)
		if err != nil {
			return nil, err
		}
		if err := n.Start(ctx); err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() error {
			return n.Stop(context.Background())
		})
		journals = append(journals, n)
	}
	switch len(journals) {
	case 0:
		return nil, nil
	case 1:
		return journals[0], nil
	default:
		return journals, nil
	}
}

func (s *Stack) openStore(ctx context.Context, cfg *config.Config, shared bool) (store.Opener, error) {
	switch cfg.Store.Backend {
	case config.StoreRedis:
		if !shared {
			return redisstore.NewOpener(redisConfig(cfg.Redis))
		}
		client, err := s.redis(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return redisstore.NewSharedOpener(client), nil
	case config.StorePostgres:
		db, err := s.database(ctx, cfg.MasterDB)
		if err != nil {
			return nil, err
		}
		return postgres.NewOpener(db, clock.SystemClock), nil
	case config.StoreMemory:
		log.Warn("using in-memory idempotency store, records are lost on exit")
		return memory.NewBackend(clock.SystemClock), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func (s *Stack) database(ctx context.Context, cfg config.DBConfig) (*database.DB, error) {
	if s.DB != nil {
		return s.DB, nil
	}
	db, err := database.NewDB(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	s.DB = db
	s.closers = append(s.closers, db.Close)
	return db, nil
}

func (s *Stack) redis(ctx context.Context, cfg config.RedisConfig) (goredis.UniversalClient, error) {
	if s.Redis != nil {
		return s.Redis, nil
	}
	opts, err := redisConfig(cfg).Options()
	if err != nil {
		return nil, err
	}
	strategy := &retry.ExponentialStrategy{Min: 500 * time.Millisecond, Max: 10 * time.Second, MaxJitter: 250 * time.Millisecond}
	client, err := retry.Do[*goredis.Client](ctx, 5, strategy, func() (*goredis.Client, error) {
		c := goredis.NewClient(opts)
		if err := c.Ping(ctx).Err(); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("connect redis %s: %w", opts.Addr, err)
		}
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	s.Redis = client
	s.closers = append(s.closers, client.Close)
	return client, nil
}

func (s *Stack) Close() error {
	var result error
	for i := len(s.closers) - 1; i >= 0; i-- {
		result = errors.Join(result, s.closers[i]())
	}
	s.closers = nil
	return result
}

func redisConfig(cfg config.RedisConfig) redisstore.Config {
	return redisstore.Config{URL: cfg.Url, Username: cfg.Username, Password: cfg.Password}
}

// RelayService runs the stream worker and the metrics endpoint.
type RelayService struct {
	stack         *Stack
	relay         *worker.Relay
	metrics       *metrics.Metrics
	metricsServer *metrics.Server
	metricsCfg    config.ServerConfig

	stopped atomic.Bool
}

func NewRelayService(ctx context.Context, cfg *config.Config, shutdown context.CancelCauseFunc) (*RelayService, error) {
	m := metrics.NewMetrics()
	stack, err := NewStack(ctx, cfg, StackOptions{Metrics: m, Shared: true, Shutdown: shutdown})
	if err != nil {
		return nil, err
	}
	client, err := stack.redis(ctx, cfg.Redis)
	if err != nil {
		_ = stack.Close()
		return nil, err
	}
	relay, err := worker.NewRelay(cfg.Worker, cfg.Chain, client, stack.Engine, m, shutdown)
	if err != nil {
		_ = stack.Close()
		return nil, err
	}
	return &RelayService{
		stack:      stack,
		relay:      relay,
		metrics:    m,
		metricsCfg: cfg.Metrics,
	}, nil
}

func (s *RelayService) Start(ctx context.Context) error {
	if s.metricsCfg.Port > 0 {
		srv, err := metrics.StartServer(s.metrics.Registry(), s.metricsCfg.Host, s.metricsCfg.Port)
		if err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		s.metricsServer = srv
		log.Info("metrics server started", "addr", srv.Addr().String())
	}
	return s.relay.Start(ctx)
}

func (s *RelayService) Stop(ctx context.Context) error {
	var result error
	if err := s.relay.Stop(ctx); err != nil {
		result = errors.Join(result, fmt.Errorf("failed to stop relay: %w", err))
	}
	if s.metricsServer != nil {
		if err := s.metricsServer.Stop(ctx); err != nil {
			result = errors.Join(result, fmt.Errorf("failed to stop metrics server: %w", err))
		}
	}
	if err := s.stack.Close(); err != nil {
		result = errors.Join(result, fmt.Errorf("failed to close connections: %w", err))
	}
	s.stopped.Store(true)
	log.Info("relay service stopped")
	return result
}

func (s *RelayService) Stopped() bool {
	return s.stopped.Load()
}
