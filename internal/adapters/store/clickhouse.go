// Package store provides adapters for exporting parsed history to storage backends.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	ch "github.com/MyCarrier-DevOps/goLibMyCarrier/clickhouse"

	"github.com/MyCarrier-DevOps/gitparse/internal/domain"
)

// ErrConfigRequired indicates Open was called without a ClickHouse configuration.
var ErrConfigRequired = errors.New("clickhouse configuration is required")

// Logger defines the logging interface for the store adapter.
type Logger interface {
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Info(ctx context.Context, msg string, fields map[string]interface{})
}

// Batch is the subset of driver.Batch the sink uses.
type Batch interface {
	Append(v ...any) error
	Send() error
	Abort() error
}

// Conn is the subset of a ClickHouse connection the sink uses.
type Conn interface {
	Exec(ctx context.Context, query string, args ...any) error
	PrepareBatch(ctx context.Context, query string) (Batch, error)
	Close() error
}

// sessionConn adapts a goLibMyCarrier ClickHouse session to Conn.
// Statements go through the session so they inherit its retry policy.
type sessionConn struct {
	session *ch.ClickhouseSession
}

func (c sessionConn) Exec(ctx context.Context, query string, args ...any) error {
	return c.session.ExecWithArgs(ctx, query, args...)
}

func (c sessionConn) PrepareBatch(ctx context.Context, query string) (Batch, error) {
	return c.session.Conn().PrepareBatch(ctx, query)
}

func (c sessionConn) Close() error {
	return c.session.Close()
}

// ClickHouseSink implements domain.CommitSink by batching commits and their
// file changes into the commits and file_changes tables.
type ClickHouseSink struct {
	conn     Conn
	database string
	logger   Logger
	now      func() time.Time

	mu          sync.Mutex
	schemaReady bool
}

// Open connects to ClickHouse through goLibMyCarrier/clickhouse, which pings the
// server and retries the connection. The configured database must already exist.
func Open(ctx context.Context, cfg *ch.ClickhouseConfig, log Logger) (*ClickHouseSink, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}

	session, err := ch.NewClickhouseSession(cfg, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse at %s:%s: %w", cfg.ChHostname, cfg.ChPort, err)
	}

	log.Debug(ctx, "connected to clickhouse", map[string]interface{}{
		"host":     cfg.ChHostname,
		"database": cfg.ChDatabase,
	})
	return NewClickHouseSink(sessionConn{session: session}, cfg.ChDatabase, log), nil
}

// NewClickHouseSink creates a sink writing into database over conn.
func NewClickHouseSink(conn Conn, database string, log Logger) *ClickHouseSink {
	return &ClickHouseSink{
		conn:     conn,
		database: database,
		logger:   log,
		now:      time.Now,
	}
}

// WriteCommits exports commits of repository. Rows are keyed by (repository, sha),
// so exporting overlapping ranges twice converges to one row per commit.
func (s *ClickHouseSink) WriteCommits(ctx context.Context, repository string, commits []domain.Commit) error {
	if len(commits) == 0 {
		return nil
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}

	exportedAt := s.now().UTC()

	commitRows, err := s.conn.PrepareBatch(ctx, "INSERT INTO "+s.table("commits"))
	if err != nil {
		return fmt.Errorf("failed to prepare commits batch: %w", err)
	}
	changeRows, err := s.conn.PrepareBatch(ctx, "INSERT INTO "+s.table("file_changes"))
	if err != nil {
		_ = commitRows.Abort()
		return fmt.Errorf("failed to prepare file_changes batch: %w", err)
	}

	changeCount := 0
	for _, c := range commits {
		if err := commitRows.Append(
			repository,
			c.SHA,
			c.Author.Name,
			c.Author.Email,
			time.UnixMilli(c.Author.Timestamp).UTC(),
			tzOffset(c.Author.TimezoneOffset),
			c.Summary,
			c.Body,
			exportedAt,
		); err != nil {
			abortAll(commitRows, changeRows)
			return fmt.Errorf("failed to append commit %s: %w", c.SHA, err)
		}

		for i, fc := range c.FileChanges {
			if err := changeRows.Append(
				repository,
				c.SHA,
				uint32(i),
				fc.Status.String(),
				string(fc.URI),
				string(fc.OldURI),
				exportedAt,
			); err != nil {
				abortAll(commitRows, changeRows)
				return fmt.Errorf("failed to append file change of %s: %w", c.SHA, err)
			}
			changeCount++
		}
	}

	if err := commitRows.Send(); err != nil {
		_ = changeRows.Abort()
		return fmt.Errorf("failed to send commits batch: %w", err)
	}
	if err := changeRows.Send(); err != nil {
		return fmt.Errorf("failed to send file_changes batch: %w", err)
	}

	s.logger.Info(ctx, "exported commits", map[string]interface{}{
		"repository":   repository,
		"database":     s.database,
		"commits":      len(commits),
		"file_changes": changeCount,
	})
	return nil
}

// Close releases the underlying connection.
func (s *ClickHouseSink) Close() error {
	return s.conn.Close()
}

func (s *ClickHouseSink) ensureSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schemaReady {
		return nil
	}

	for _, stmt := range s.schema() {
		if err := s.conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	s.logger.Debug(ctx, "clickhouse schema ready", map[string]interface{}{
		"database": s.database,
	})
	s.schemaReady = true
	return nil
}

func (s *ClickHouseSink) schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS ` + s.table("commits") + ` (
	repository   String,
	sha          String,
	author_name  String,
	author_email String,
	authored_at  DateTime64(3, 'UTC'),
	tz_offset    Nullable(Int16),
	summary      String,
	body         String,
	exported_at  DateTime64(3, 'UTC')
) ENGINE = ReplacingMergeTree(exported_at)
ORDER BY (repository, sha)`,
		`CREATE TABLE IF NOT EXISTS ` + s.table("file_changes") + ` (
	repository  String,
	sha         String,
	position    UInt32,
	status      LowCardinality(String),
	uri         String,
	old_uri     String,
	exported_at DateTime64(3, 'UTC')
) ENGINE = ReplacingMergeTree(exported_at)
ORDER BY (repository, sha, position)`,
	}
}

func (s *ClickHouseSink) table(name string) string {
	return quoteIdentifier(s.database) + "." + quoteIdentifier(name)
}

var identifierEscaper = strings.NewReplacer("\\", "\\\\", "`", "\\`")

// quoteIdentifier renders name as a backtick-quoted ClickHouse identifier.
func quoteIdentifier(name string) string {
	return "`" + identifierEscaper.Replace(name) + "`"
}

func tzOffset(minutes *int) *int16 {
	if minutes == nil {
		return nil
	}
	v := int16(*minutes)
	return &v
}

func abortAll(batches ...Batch) {
	for _, b := range batches {
		_ = b.Abort()
	}
}
