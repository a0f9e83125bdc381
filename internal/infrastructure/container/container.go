package container

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"accountability/internal/application/port"
	"accountability/internal/application/service"
	"accountability/internal/infrastructure/brokerage"
	"accountability/internal/infrastructure/cache"
	"accountability/internal/infrastructure/config"
	"accountability/internal/infrastructure/storage/composite"
	pgrepo "accountability/internal/infrastructure/storage/postgres"
	redisrepo "accountability/internal/infrastructure/storage/redis"
	sqliterepo "accountability/internal/infrastructure/storage/sqlite"
)

// Container 包含所有应用依赖
type Container struct {
	cfg       *config.Config
	log       zerolog.Logger
	store     *cache.Store
	source    port.PortfolioSource
	repos     []port.SeriesRepository
	portfolio *service.PortfolioService

	closeOnce   sync.Once
	closerChain []func() error
}

type Option func(*Container)

// WithSource replaces the brokerage client, mainly for tests.
func WithSource(src port.PortfolioSource) Option {
	return func(c *Container) { c.source = src }
}

// New 创建新的容器实例
func New(cfg *config.Config, log zerolog.Logger, opts ...Option) (*Container, error) {
	c := &Container{
		cfg:         cfg,
		log:         log,
		closerChain: make([]func() error, 0),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.init(); err != nil {
		// 清理已初始化的资源
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Container) init() error {
	if err := c.initCache(); err != nil {
		return fmt.Errorf("cache init failed: %w", err)
	}
	if c.source == nil {
		c.source = brokerage.NewClient(brokerage.Config{
			BaseURL:           c.cfg.Brokerage.BaseURL,
			Account:           c.cfg.Brokerage.Account,
			Token:             c.cfg.Brokerage.Token,
			Timeout:           time.Duration(c.cfg.Brokerage.TimeoutSeconds) * time.Second,
			RequestsPerSecond: c.cfg.Brokerage.RequestsPerSecond,
		}, c.log)
	}
	if err := c.initStorage(); err != nil {
		return err
	}

	deps := service.PortfolioDeps{
		Source:        c.source,
		Store:         c.store,
		HistoricalTTL: c.cfg.HistoricalTTL(),
		TransfersTTL:  c.cfg.TransfersTTL(),
		Logger:        c.log,
	}
	if len(c.repos) > 0 {
		deps.Repo = composite.New(c.repos...)
	}

	svc, err := service.NewPortfolioService(deps)
	if err != nil {
		return err
	}
	c.portfolio = svc
	return nil
}

func (c *Container) initCache() error {
	store, err := cache.Open(c.cfg.Cache.Path,
		cache.WithLogger(c.log),
		cache.WithBusyTimeout(c.cfg.BusyTimeout()),
		cache.WithRetryPolicy(cache.RetryPolicy{
			Attempts: c.cfg.Cache.RetryAttempts,
			Base:     c.cfg.RetryBase(),
		}),
	)
	if err != nil {
		return err
	}
	c.store = store

	c.closerChain = append(c.closerChain, func() error {
		c.log.Debug().Msg("closing cache store")
		return store.Close()
	})

	c.log.Debug().Str("path", c.cfg.Cache.Path).Msg("cache initialized")
	return nil
}

// initStorage 初始化快照存储（Redis、SQLite、Postgres）
func (c *Container) initStorage() error {
	if c.cfg.Storage.Redis.Enabled {
		if err := c.initRedis(); err != nil {
			return fmt.Errorf("redis init failed: %w", err)
		}
	}
	if c.cfg.Storage.SQLite.Enabled {
		if err := c.initSQLite(); err != nil {
			return fmt.Errorf("sqlite init failed: %w", err)
		}
	}
	if c.cfg.Storage.Postgres.Enabled {
		if err := c.initPostgres(); err != nil {
			return fmt.Errorf("postgres init failed: %w", err)
		}
	}
	return nil
}

// initRedis 初始化 Redis 连接
func (c *Container) initRedis() error {
	rcfg := c.cfg.Storage.Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     rcfg.Addr,
		Password: rcfg.Password,
		DB:       rcfg.DB,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("redis ping failed: %w", err)
	}

	repo := redisrepo.New(
		rdb,
		rcfg.Prefix,
		time.Duration(rcfg.TTLSeconds)*time.Second,
		rcfg.SeriesStream,
		rcfg.SeriesChannel,
	)
	c.register("redis", repo)

	c.log.Info().
		Str("addr", rcfg.Addr).
		Int("db", rcfg.DB).
		Msg("redis initialized")
	return nil
}

// initSQLite 初始化 SQLite 数据库
func (c *Container) initSQLite() error {
	repo, err := sqliterepo.New(c.cfg.Storage.SQLite.Path)
	if err != nil {
		return err
	}
	c.register("sqlite", repo)

	c.log.Info().
		Str("path", c.cfg.Storage.SQLite.Path).
		Msg("sqlite initialized")
	return nil
}

func (c *Container) initPostgres() error {
	repo, err := pgrepo.New(c.cfg.Storage.Postgres.DSN)
	if err != nil {
		return err
	}
	c.register("postgres", repo)

	c.log.Info().Msg("postgres initialized")
	return nil
}

// register 加入快照仓储并注册关闭回调
func (c *Container) register(name string, repo port.SeriesRepository) {
	c.repos = append(c.repos, repo)
	c.closerChain = append(c.closerChain, func() error {
		c.log.Debug().Str("repo", name).Msg("closing snapshot repository")
		return repo.Close()
	})
}

func (c *Container) Config() *config.Config { return c.cfg }

func (c *Container) Store() *cache.Store { return c.store }

func (c *Container) Portfolio() *service.PortfolioService { return c.portfolio }

// Close 关闭所有资源（按后进先出顺序）
func (c *Container) Close() error {
	var err error
	c.closeOnce.Do(func() {
		for i := len(c.closerChain) - 1; i >= 0; i-- {
			if e := c.closerChain[i](); e != nil {
				c.log.Error().Err(e).Msg("error closing resource")
				if err == nil {
					err = e
				}
			}
		}
		c.log.Debug().Msg("container closed")
	})
	return err
}
