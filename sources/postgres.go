//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of GoAgg.
//
// GoAgg is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// GoAgg is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with GoAgg. If not, see https://www.gnu.org/licenses/.

package sources

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/aaronlmathis/goagg"
)

// This file implements a PostgreSQL-backed element source. Rows are streamed
// through a server-side cursor in fixed-size FETCH batches, bounding memory
// while avoiding a round trip per row.

// PostgresSourceOptions configures the PostgreSQL source.
type PostgresSourceOptions struct {
	DSN             string        // Database connection string
	Query           string        // SQL query to stream
	Params          []interface{} // Optional query parameters
	FetchSize       int           // Rows per cursor FETCH
	CursorName      string        // Server-side cursor name
	ConnMaxLifetime time.Duration // Maximum connection lifetime
	ConnMaxIdleTime time.Duration // Maximum connection idle time
	MaxOpenConns    int           // Maximum open connections
	MaxIdleConns    int           // Maximum idle connections
	ConnectTimeout  time.Duration // Timeout for the initial connect/declare
}

// PostgresSourceOption represents a configuration function for
// PostgresSourceOptions.
type PostgresSourceOption func(*PostgresSourceOptions)

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) PostgresSourceOption {
	return func(opts *PostgresSourceOptions) {
		opts.DSN = dsn
	}
}

// WithPostgresQuery sets the SQL query and optional parameters.
func WithPostgresQuery(query string, params ...interface{}) PostgresSourceOption {
	return func(opts *PostgresSourceOptions) {
		opts.Query = query
		if len(params) > 0 {
			opts.Params = make([]interface{}, len(params))
			copy(opts.Params, params)
		}
	}
}

// WithPostgresFetchSize sets the number of rows pulled per cursor FETCH.
func WithPostgresFetchSize(size int) PostgresSourceOption {
	return func(opts *PostgresSourceOptions) {
		opts.FetchSize = size
	}
}

// WithPostgresCursorName sets the server-side cursor name.
func WithPostgresCursorName(name string) PostgresSourceOption {
	return func(opts *PostgresSourceOptions) {
		opts.CursorName = name
	}
}

// WithPostgresConnectionPool configures the connection pool.
func WithPostgresConnectionPool(maxOpen, maxIdle int) PostgresSourceOption {
	return func(opts *PostgresSourceOptions) {
		opts.MaxOpenConns = maxOpen
		opts.MaxIdleConns = maxIdle
	}
}

// WithPostgresConnectionTimeout sets connection and idle timeouts.
func WithPostgresConnectionTimeout(lifetime, idleTime time.Duration) PostgresSourceOption {
	return func(opts *PostgresSourceOptions) {
		opts.ConnMaxLifetime = lifetime
		opts.ConnMaxIdleTime = idleTime
	}
}

// WithPostgresConnectTimeout bounds the initial connect and cursor declare.
func WithPostgresConnectTimeout(timeout time.Duration) PostgresSourceOption {
	return func(opts *PostgresSourceOptions) {
		opts.ConnectTimeout = timeout
	}
}

// withDefaults applies default values to PostgresSourceOptions.
func (opts *PostgresSourceOptions) withDefaults() *PostgresSourceOptions {
	result := &PostgresSourceOptions{}
	if opts != nil {
		*result = *opts
	}
	if result.FetchSize <= 0 {
		result.FetchSize = 100
	}
	if result.CursorName == "" {
		result.CursorName = "goagg_cursor"
	}
	if result.ConnectTimeout <= 0 {
		result.ConnectTimeout = 30 * time.Second
	}
	if result.ConnMaxLifetime <= 0 {
		result.ConnMaxLifetime = 5 * time.Minute
	}
	if result.ConnMaxIdleTime <= 0 {
		result.ConnMaxIdleTime = 1 * time.Minute
	}
	if result.MaxOpenConns <= 0 {
		result.MaxOpenConns = 10
	}
	if result.MaxIdleConns <= 0 {
		result.MaxIdleConns = 5
	}
	return result
}

// PostgresSource streams query rows as records through a server-side cursor.
type PostgresSource struct {
	mu          sync.Mutex
	db          *sql.DB
	tx          *sql.Tx
	rows        *sql.Rows
	columns     []string
	columnTypes []*sql.ColumnType
	scanBuffer  []interface{}
	values      []interface{}
	batchRows   int
	rowsRead    int64
	finished    bool
	opts        *PostgresSourceOptions
}

// NewPostgresSource connects, declares the cursor, and returns a source ready
// to stream. The query is not executed beyond the cursor declaration until the
// first Next.
func NewPostgresSource(options ...PostgresSourceOption) (*PostgresSource, error) {
	opts := (&PostgresSourceOptions{}).withDefaults()
	for _, option := range options {
		option(opts)
	}

	if opts.DSN == "" {
		return nil, &goagg.SourceError{Op: "validate", Err: fmt.Errorf("dsn is required")}
	}
	if opts.Query == "" {
		return nil, &goagg.SourceError{Op: "validate", Err: fmt.Errorf("query is required")}
	}
	if !isValidCursorName(opts.CursorName) {
		return nil, &goagg.SourceError{Op: "validate", Err: fmt.Errorf("invalid cursor name: %s", opts.CursorName)}
	}

	db, err := sql.Open("postgres", opts.DSN)
	if err != nil {
		return nil, &goagg.SourceError{Op: "connect", Err: err}
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	db.SetConnMaxIdleTime(opts.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &goagg.SourceError{Op: "ping", Err: err}
	}

	// The cursor lives inside a transaction held for the life of the source.
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		db.Close()
		return nil, &goagg.SourceError{Op: "begin_transaction", Err: err}
	}

	declareSQL := fmt.Sprintf("DECLARE %s CURSOR FOR %s", opts.CursorName, opts.Query)
	if _, err := tx.ExecContext(ctx, declareSQL, opts.Params...); err != nil {
		tx.Rollback()
		db.Close()
		return nil, &goagg.SourceError{Op: "declare_cursor", Err: err}
	}

	return &PostgresSource{
		db:   db,
		tx:   tx,
		opts: opts,
	}, nil
}

// Next implements the goagg.Source interface. Thread-safe.
func (p *PostgresSource) Next(ctx context.Context) (goagg.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, &goagg.SourceError{Op: "next", Err: ctx.Err()}
	default:
	}

	if p.finished {
		return nil, io.EOF
	}
	if p.db == nil {
		return nil, &goagg.SourceError{Op: "next", Err: fmt.Errorf("source is closed")}
	}

	for {
		if p.rows == nil {
			if err := p.fetchBatch(ctx); err != nil {
				return nil, &goagg.SourceError{Op: "fetch", Err: err}
			}
		}
		if p.rows.Next() {
			break
		}
		if err := p.rows.Err(); err != nil {
			return nil, &goagg.SourceError{Op: "fetch", Err: err}
		}

		// An empty FETCH means the cursor is exhausted.
		exhausted := p.batchRows == 0
		p.rows.Close()
		p.rows = nil
		if exhausted {
			p.finished = true
			return nil, io.EOF
		}
	}

	if err := p.rows.Scan(p.scanBuffer...); err != nil {
		return nil, &goagg.SourceError{Op: "scan", Err: err}
	}
	p.batchRows++
	p.rowsRead++

	record := make(goagg.Record, len(p.columns))
	for i, column := range p.columns {
		record[column] = convertSQLValue(p.values[i], p.columnTypes[i])
	}
	return record, nil
}

// fetchBatch pulls the next FetchSize rows from the cursor and rebuilds the
// scan buffers from the result's column set.
func (p *PostgresSource) fetchBatch(ctx context.Context) error {
	fetchSQL := fmt.Sprintf("FETCH %d FROM %s", p.opts.FetchSize, p.opts.CursorName)
	rows, err := p.tx.QueryContext(ctx, fetchSQL)
	if err != nil {
		return err
	}

	columns, err := rows.Columns()
	if err != nil {
		rows.Close()
		return err
	}
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		rows.Close()
		return err
	}

	p.rows = rows
	p.columns = columns
	p.columnTypes = columnTypes
	p.batchRows = 0

	p.scanBuffer = make([]interface{}, len(columns))
	p.values = make([]interface{}, len(columns))
	for i := range p.scanBuffer {
		p.scanBuffer[i] = &p.values[i]
	}
	return nil
}

// Close implements the goagg.Source interface.
func (p *PostgresSource) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error

	if p.rows != nil {
		if err := p.rows.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing rows: %w", err))
		}
		p.rows = nil
	}
	if p.tx != nil {
		if err := p.tx.Rollback(); err != nil && err != sql.ErrTxDone {
			errs = append(errs, fmt.Errorf("rolling back transaction: %w", err))
		}
		p.tx = nil
	}
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing database: %w", err))
		}
		p.db = nil
	}

	if len(errs) > 0 {
		return &goagg.SourceError{Op: "close", Err: fmt.Errorf("multiple errors: %v", errs)}
	}
	return nil
}

// Rows returns the number of rows yielded so far.
func (p *PostgresSource) Rows() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rowsRead
}

// isValidCursorName restricts cursor names to identifier characters.
func isValidCursorName(name string) bool {
	for _, r := range name {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '_') {
			return false
		}
	}
	return len(name) > 0 && len(name) <= 63 // PostgreSQL identifier limit
}

// convertSQLValue converts SQL driver values to plain Go types. Text comes
// back as []byte from lib/pq; NUMERIC/DECIMAL values are parsed into float64
// so numeric columns can feed the reducers directly.
func convertSQLValue(value interface{}, colType *sql.ColumnType) interface{} {
	if value == nil {
		return nil
	}

	if b, ok := value.([]byte); ok {
		dbType := ""
		if colType != nil {
			dbType = colType.DatabaseTypeName()
		}
		switch dbType {
		case "NUMERIC", "DECIMAL":
			if f, err := strconv.ParseFloat(string(b), 64); err == nil {
				return f
			}
			return string(b)
		case "TEXT", "VARCHAR", "CHAR", "BPCHAR":
			return string(b)
		default:
			return b
		}
	}

	switch v := value.(type) {
	case time.Time, bool, int64, float64, string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
