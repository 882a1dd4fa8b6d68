/*
 * Copyright 2025 Clidey, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package dbpool owns the process-wide database handle lifecycle: a single
// gorm/sql.DB pair behind a small state machine that resets itself on fatal
// transport errors reported through ReportFatalError and drains within a
// bounded timeout on shutdown.
package dbpool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/databeam/xlsxexport/internal/log"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/sync/singleflight"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// State is one of the pool lifecycle states from the connection pool's
// contract: uninitialized -> connecting -> ready, with resetting and
// shutting_down/closed as the two excursions out of ready.
type State int

const (
	StateUninitialized State = iota
	StateConnecting
	StateReady
	StateResetting
	StateShuttingDown
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateResetting:
		return "resetting"
	case StateShuttingDown:
		return "shutting_down"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Config configures connection limits and timeouts for the pool.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string

	MaxConns      int
	MinWarm       int
	IdleTimeout   time.Duration
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
}

// ErrPoolUnavailable is returned by Acquire when the pool is shutting down
// or already closed.
var ErrPoolUnavailable = errors.New("dbpool: pool is shutting down or closed")

// Pool owns one database handle for the whole process.
type Pool struct {
	cfg Config

	mu    sync.Mutex
	state State
	db    *gorm.DB
	sqlDB *sql.DB
	sf    singleflight.Group // collapses concurrent connect attempts into one
}

// New creates an unconnected Pool. Callers must call Acquire (which connects
// lazily) or Connect explicitly before issuing queries.
func New(cfg Config) *Pool {
	return &Pool{cfg: cfg, state: StateUninitialized}
}

// State returns the pool's current lifecycle state.
func (p *Pool) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Connect establishes the underlying connection if not already ready,
// single-flighting concurrent callers so only one "connecting" attempt is
// ever in flight; additional callers await that same attempt.
func (p *Pool) Connect(ctx context.Context) error {
	p.mu.Lock()
	switch p.state {
	case StateReady:
		p.mu.Unlock()
		return nil
	case StateShuttingDown, StateClosed:
		p.mu.Unlock()
		return ErrPoolUnavailable
	}
	p.mu.Unlock()

	_, err, _ := p.sf.Do("connect", func() (interface{}, error) {
		p.mu.Lock()
		if p.state == StateReady {
			p.mu.Unlock()
			return nil, nil
		}
		p.state = StateConnecting
		p.mu.Unlock()

		connErr := p.connect(ctx)

		p.mu.Lock()
		if connErr != nil {
			p.state = StateUninitialized
		} else {
			p.state = StateReady
		}
		p.mu.Unlock()

		return nil, connErr
	})

	return err
}

// connect performs the actual dial; callers must not hold p.mu.
func (p *Pool) connect(ctx context.Context) error {
	dsn := p.dsn()

	connectCtx, cancel := context.WithTimeout(ctx, p.cfg.ConnectTimeout)
	defer cancel()

	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
	db, err := gorm.Open(postgres.New(postgres.Config{DSN: dsn}), gormCfg)
	if err != nil {
		log.Logger.WithError(err).Error("dbpool: failed to open database connection")
		return fmt.Errorf("dbpool: open: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("dbpool: underlying sql.DB: %w", err)
	}

	if err := sqlDB.PingContext(connectCtx); err != nil {
		sqlDB.Close()
		return fmt.Errorf("dbpool: ping: %w", err)
	}

	sqlDB.SetMaxOpenConns(p.cfg.MaxConns)
	sqlDB.SetMaxIdleConns(p.cfg.MinWarm)
	sqlDB.SetConnMaxIdleTime(p.cfg.IdleTimeout)

	p.mu.Lock()
	p.db = db
	p.sqlDB = sqlDB
	p.mu.Unlock()

	log.Logger.Info("dbpool: connection established")
	return nil
}

func (p *Pool) dsn() string {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.cfg.User, p.cfg.Password),
		Host:   net.JoinHostPort(p.cfg.Host, fmt.Sprintf("%d", p.cfg.Port)),
		Path:   "/" + p.cfg.Database,
	}
	q := u.Query()
	q.Set("sslmode", "prefer")
	u.RawQuery = q.Encode()
	return u.String()
}

// Acquire returns a handle usable for one query. It connects lazily on first
// use and refuses to hand out a handle once the pool is shutting down or
// closed.
func (p *Pool) Acquire(ctx context.Context) (*sql.DB, error) {
	p.mu.Lock()
	state := p.state
	sqlDB := p.sqlDB
	p.mu.Unlock()

	switch state {
	case StateShuttingDown, StateClosed:
		return nil, ErrPoolUnavailable
	case StateReady:
		return sqlDB, nil
	default:
		if err := p.Connect(ctx); err != nil {
			return nil, err
		}
		p.mu.Lock()
		sqlDB = p.sqlDB
		p.mu.Unlock()
		return sqlDB, nil
	}
}

// ReportFatalError takes a transport error observed by a query caller and,
// when it is classified as fatal (see IsFatalTransportError), triggers an
// asynchronous reset-and-reconnect; the caller's own query has already
// failed and should surface a Database error independently (per spec,
// pool errors propagate to the current export as a Database kind while the
// pool transitions and logs independently). The export handlers and the
// export controller in this module do not call it, so a failed export
// query does not by itself reset the pool.
func (p *Pool) ReportFatalError(err error) {
	if !IsFatalTransportError(err) {
		return
	}
	p.mu.Lock()
	if p.state != StateReady {
		p.mu.Unlock()
		return
	}
	p.state = StateResetting
	p.mu.Unlock()

	log.Logger.WithError(err).Warn("dbpool: fatal transport error observed, resetting pool")
	go func() {
		p.CloseAndReset()
		if connErr := p.Connect(context.Background()); connErr != nil {
			log.Logger.WithError(connErr).Error("dbpool: reconnect after reset failed")
		}
	}()
}

// CloseAndReset closes the underlying connection and returns the pool to
// uninitialized so the next Acquire reconnects. Idempotent and safe to call
// from an error callback; failures are logged, never returned as an
// unhandled rejection; the connection is fully closed before the
// reference is cleared.
func (p *Pool) CloseAndReset() {
	p.mu.Lock()
	if p.state == StateShuttingDown || p.state == StateClosed {
		p.mu.Unlock()
		return
	}
	sqlDB := p.sqlDB
	p.sqlDB = nil
	p.db = nil
	if p.state != StateResetting {
		p.state = StateResetting
	}
	p.mu.Unlock()

	if sqlDB != nil {
		if err := sqlDB.Close(); err != nil {
			log.Logger.WithError(err).Error("dbpool: error closing connection during reset")
		}
	}

	p.mu.Lock()
	if p.state == StateResetting {
		p.state = StateUninitialized
	}
	p.mu.Unlock()
}

// GracefulShutdown sets state to shutting_down before initiating close so
// no new queries begin during drain, then races the pool's natural close
// against timeout. The timer is always cancelled before returning so it
// never keeps the process alive past this call.
func (p *Pool) GracefulShutdown(timeout time.Duration) error {
	p.mu.Lock()
	if p.state == StateClosed {
		p.mu.Unlock()
		return nil
	}
	p.state = StateShuttingDown
	sqlDB := p.sqlDB
	p.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		if sqlDB == nil {
			done <- nil
			return
		}
		done <- sqlDB.Close()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var closeErr error
	select {
	case closeErr = <-done:
	case <-timer.C:
		log.Logger.Warn("dbpool: graceful shutdown timed out waiting for drain")
	}

	p.mu.Lock()
	p.state = StateClosed
	p.sqlDB = nil
	p.db = nil
	p.mu.Unlock()

	return closeErr
}

// IsFatalTransportError narrows "fatal" to network-level failures and
// PostgreSQL connection-exception SQLSTATEs (class 08xxx) - the Postgres
// analogue of the source system's ESOCKET/ECONNRESET pairing. Any other
// transport error does not trigger a reset.
func IsFatalTransportError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08"
	}
	return errors.Is(err, net.ErrClosed)
}
