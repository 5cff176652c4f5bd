package musedex

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/text/language"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver    string // "memory", "redis" or "postgres"
	addrs     []string
	password  string
	dsn       string
	keyPrefix string
	fixture   string

	defaultPageSize int
	maxPageSize     int
	locale          language.Tag

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithRedis configures the client to use a Redis instance with the search module.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithPostgres configures the client to use a PostgreSQL database.
func WithPostgres(dsn string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "postgres"
		c.dsn = dsn
	})
}

// WithMemory keeps the catalog in process. Combine with WithFixture to
// start from a populated catalog.
func WithMemory() Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "memory"
	})
}

// WithFixture loads a YAML catalog fixture after connecting.
func WithFixture(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.fixture = path
	})
}

// WithKeyPrefix sets the Redis key prefix. Default: "musedex:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithPageLimits sets the default and maximum search page size.
// Defaults: 10 and 100.
func WithPageLimits(defaultSize, maxSize int) Option {
	return optionFunc(func(c *clientConfig) {
		c.defaultPageSize = defaultSize
		c.maxPageSize = maxSize
	})
}

// WithCollation sets the locale used to order non-exact search matches.
func WithCollation(tag language.Tag) Option {
	return optionFunc(func(c *clientConfig) {
		c.locale = tag
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
