// Package postgres implements store.Store with database/sql over the pgx
// driver. Queries are hand written; schema changes ship as goose migrations.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"

	"ralph-api/internal/store"
)

// Store is a PostgreSQL store.Store
type Store struct {
	DB *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open connects to dsn and verifies the connection
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open database connection")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "database ping")
	}
	return New(db), nil
}

// New wraps an open database handle
func New(db *sql.DB) *Store {
	return &Store{DB: db}
}

type ctxKey string

const txKey ctxKey = "dbtx"

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// dbFrom prefers the transaction carried by ctx over the pool
func (s *Store) dbFrom(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey).(*sql.Tx); ok {
		return tx
	}
	return s.DB
}

// WithTx runs fn in a transaction carried by the context passed to fn.
// Nested calls join the outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey).(*sql.Tx); ok {
		return fn(ctx)
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	if err := fn(context.WithValue(ctx, txKey, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Wrapf(err, "rollback failed: %v", rbErr)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "commit transaction")
}

// inTx runs fn in the context transaction or in a new one, for writes that
// touch several tables
func (s *Store) inTx(ctx context.Context, fn func(q querier) error) error {
	return s.WithTx(ctx, func(ctx context.Context) error {
		return fn(s.dbFrom(ctx))
	})
}

func (s *Store) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.DB.Close()
}

// fields named by composite unique constraints
var constraintFields = map[string]string{
	"configuration_modules_parent_name_key":        "parent, name",
	"configuration_classes_module_class_name_key":  "module, class_name",
	"service_environments_service_environment_key": "service, environment",
	"vips_ip_port_protocol_key":                    "ip, port, protocol",
}

// translate maps driver errors onto the store sentinels
func translate(err error, table string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			if field, ok := constraintFields[pgErr.ConstraintName]; ok {
				return store.Conflict(field)
			}
			field := strings.TrimPrefix(pgErr.ConstraintName, pgErr.TableName+"_")
			return store.Conflict(strings.TrimSuffix(field, "_key"))
		case "23503":
			return store.Protected(store.ReferencedMessage)
		}
	}
	return errors.Wrap(err, table)
}

// buildOrderBy builds a safe ORDER BY clause using a whitelist of allowed keys.
// allowed maps incoming sort keys (e.g., "name") to actual column identifiers.
// Input sort is comma-separated; prefix with '-' for DESC.
// The id column always closes the ordering so pages are stable.
func buildOrderBy(sortParam string, allowed map[string]string) string {
	idCol := "id"
	if col, ok := allowed["id"]; ok {
		idCol = col
	}
	clauses := []string{}
	for _, raw := range strings.Split(sortParam, ",") {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		desc := false
		if strings.HasPrefix(s, "-") {
			desc = true
			s = strings.TrimPrefix(s, "-")
		}
		col, ok := allowed[s]
		if !ok {
			continue
		}
		if desc {
			clauses = append(clauses, col+" DESC")
		} else {
			clauses = append(clauses, col+" ASC")
		}
	}
	clauses = append(clauses, idCol+" ASC")
	return " ORDER BY " + strings.Join(clauses, ", ")
}

// limitOffset renders the paging clause; a non-positive limit means all rows
func limitOffset(opts store.ListOptions) string {
	out := ""
	if opts.Limit > 0 {
		out += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	if opts.Offset > 0 {
		out += fmt.Sprintf(" OFFSET %d", opts.Offset)
	}
	return out
}

// where accumulates numbered predicates
type where struct {
	clauses []string
	args    []any
}

// add appends a predicate whose placeholders are written as $%d
func (w *where) add(clause string, vals ...any) {
	idx := make([]any, len(vals))
	for i, v := range vals {
		w.args = append(w.args, v)
		idx[i] = len(w.args)
	}
	w.clauses = append(w.clauses, fmt.Sprintf(clause, idx...))
}

// next reserves a placeholder for v and returns its number
func (w *where) next(v any) int {
	w.args = append(w.args, v)
	return len(w.args)
}

func (w *where) sql() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// nameOptions applies ListOptions.Query and ListOptions.Name to col
func (w *where) nameOptions(col string, opts store.ListOptions) {
	if opts.Query != "" {
		w.add(col+" ILIKE $%d", "%"+opts.Query+"%")
	}
	if opts.Name != "" {
		w.add(col+" = $%d", opts.Name)
	}
}

func nullInt(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func scanNullInt(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
