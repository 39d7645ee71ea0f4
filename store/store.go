package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/DomeLiquid/federation/core"
	"github.com/facebookgo/clock"
	"github.com/glebarez/sqlite"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

const (
	databaseFileName     = "federation.sqlite"
	defaultPurgeInterval = time.Minute
)

var (
	_ core.MintStore        = (*Store)(nil)
	_ core.TransactionStore = (*Store)(nil)
)

// Store is the single persistent store: the mint ledger and the transaction
// records live in the same SQLite database.
type Store struct {
	db  *gorm.DB
	clk clock.Clock
	log core.Log

	purgeInterval time.Duration
	timerPurge    *clock.Timer
	timerMutex    sync.Mutex
	purgeWG       sync.WaitGroup
	closed        bool
}

type Option func(s *Store)

func WithClock(clk clock.Clock) Option {
	return func(s *Store) {
		s.clk = clk
	}
}

func WithLog(log core.Log) Option {
	return func(s *Store) {
		s.log = log
	}
}

// WithPurgeInterval sets how often expired transaction records are deleted.
// Zero disables the sweeper; expired records stay invisible to reads.
func WithPurgeInterval(d time.Duration) Option {
	return func(s *Store) {
		s.purgeInterval = d
	}
}

// New opens the store. An empty dataDir gives a private in-memory database.
func New(dataDir string, opts ...Option) (*Store, error) {
	s := &Store{
		clk:           clock.New(),
		log:           core.NopLog(),
		purgeInterval: defaultPurgeInterval,
	}
	for _, opt := range opts {
		opt(s)
	}

	var dsn string
	if dataDir == "" {
		// each in-memory store gets its own named database so tests don't share state
		dsn = fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)", uuid.Must(uuid.NewV4()).String())
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, errors.Wrap(err, "create data dir")
		}
		dsn = fmt.Sprintf(
			"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)",
			filepath.Join(dataDir, databaseFileName),
		)
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if dataDir == "" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, errors.Wrap(err, "install tracing plugin")
	}
	s.db = db

	if err := s.migrate(); err != nil {
		return nil, err
	}
	s.schedulePurge()
	return s, nil
}

func (s *Store) migrate() error {
	for _, model := range []any{&mintRow{}, &transactionRow{}} {
		s.log.Debug().Msgf("migrating table: %T", model)
		if err := s.db.AutoMigrate(model); err != nil {
			return errors.Wrapf(err, "migrate %T", model)
		}
	}
	return nil
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) Close() error {
	s.timerMutex.Lock()
	s.closed = true
	if s.timerPurge != nil {
		s.timerPurge.Stop()
	}
	s.timerMutex.Unlock()
	s.purgeWG.Wait()

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) schedulePurge() {
	s.timerMutex.Lock()
	defer s.timerMutex.Unlock()
	if s.closed || s.purgeInterval <= 0 {
		return
	}
	s.timerPurge = s.clk.AfterFunc(s.purgeInterval, func() {
		defer s.schedulePurge()
		s.timerMutex.Lock()
		if s.closed {
			s.timerMutex.Unlock()
			return
		}
		s.purgeWG.Add(1)
		s.timerMutex.Unlock()
		defer s.purgeWG.Done()

		n, err := s.purgeExpired(s.db)
		if err != nil {
			s.log.Error().Err(err).Msg("failed to purge expired transactions")
			return
		}
		if n > 0 {
			s.log.Debug().Msgf("purged %d expired transactions", n)
		}
	})
}
