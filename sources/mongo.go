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
	"fmt"
	"io"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/aaronlmathis/goagg"
)

// MongoSourceOptions configures the MongoDB source.
type MongoSourceOptions struct {
	URI          string        // MongoDB connection URI
	Database     string        // Database name
	Collection   string        // Collection name
	Filter       bson.M        // Find filter
	Projection   bson.M        // Field projection
	Sort         bson.M        // Sort specification
	Pipeline     []bson.M      // Aggregation pipeline (used instead of Find when set)
	BatchSize    int32         // Cursor batch size
	Limit        int64         // Maximum documents to yield (0 = no limit)
	Username     string        // Optional auth username
	Password     string        // Optional auth password
	AuthDatabase string        // Auth source database
	Timeout      time.Duration // Connect timeout
	MaxPoolSize  uint64        // Connection pool ceiling
}

// MongoSourceOption represents a configuration function for MongoSourceOptions.
type MongoSourceOption func(*MongoSourceOptions)

// WithMongoURI sets the MongoDB connection URI.
func WithMongoURI(uri string) MongoSourceOption {
	return func(opts *MongoSourceOptions) {
		opts.URI = uri
	}
}

// WithMongoDB sets the database name.
func WithMongoDB(database string) MongoSourceOption {
	return func(opts *MongoSourceOptions) {
		opts.Database = database
	}
}

// WithMongoCollection sets the collection name.
func WithMongoCollection(collection string) MongoSourceOption {
	return func(opts *MongoSourceOptions) {
		opts.Collection = collection
	}
}

// WithMongoFilter sets the find filter.
func WithMongoFilter(filter bson.M) MongoSourceOption {
	return func(opts *MongoSourceOptions) {
		opts.Filter = filter
	}
}

// WithMongoProjection sets the field projection.
func WithMongoProjection(projection bson.M) MongoSourceOption {
	return func(opts *MongoSourceOptions) {
		opts.Projection = projection
	}
}

// WithMongoSort sets the sort specification.
func WithMongoSort(sort bson.M) MongoSourceOption {
	return func(opts *MongoSourceOptions) {
		opts.Sort = sort
	}
}

// WithMongoPipeline sets an aggregation pipeline. When set, the source runs
// Aggregate instead of Find and the find-specific options are ignored.
func WithMongoPipeline(pipeline []bson.M) MongoSourceOption {
	return func(opts *MongoSourceOptions) {
		opts.Pipeline = pipeline
	}
}

// WithMongoBatchSize sets the cursor batch size.
func WithMongoBatchSize(batchSize int32) MongoSourceOption {
	return func(opts *MongoSourceOptions) {
		opts.BatchSize = batchSize
	}
}

// WithMongoLimit caps the number of documents yielded.
func WithMongoLimit(limit int64) MongoSourceOption {
	return func(opts *MongoSourceOptions) {
		opts.Limit = limit
	}
}

// WithMongoAuth sets authentication credentials.
func WithMongoAuth(username, password, authDB string) MongoSourceOption {
	return func(opts *MongoSourceOptions) {
		opts.Username = username
		opts.Password = password
		opts.AuthDatabase = authDB
	}
}

// WithMongoTimeout sets the connect timeout.
func WithMongoTimeout(timeout time.Duration) MongoSourceOption {
	return func(opts *MongoSourceOptions) {
		opts.Timeout = timeout
	}
}

// WithMongoPoolSize sets the connection pool ceiling.
func WithMongoPoolSize(max uint64) MongoSourceOption {
	return func(opts *MongoSourceOptions) {
		opts.MaxPoolSize = max
	}
}

// MongoSource streams collection documents as records. The connection and
// cursor are established lazily on the first Next, so construction is cheap
// and the query does not run until the aggregation starts pulling.
type MongoSource struct {
	mu        sync.Mutex
	client    *mongo.Client
	cursor    *mongo.Cursor
	opts      *MongoSourceOptions
	connected bool
	docsRead  int64
}

// NewMongoSource creates a MongoDB source with configurable options.
func NewMongoSource(mongoOpts ...MongoSourceOption) (*MongoSource, error) {
	opts := &MongoSourceOptions{
		URI:         "mongodb://localhost:27017",
		BatchSize:   1000,
		Timeout:     30 * time.Second,
		MaxPoolSize: 100,
	}
	for _, option := range mongoOpts {
		option(opts)
	}

	if opts.Database == "" {
		return nil, &goagg.SourceError{Op: "validate", Err: fmt.Errorf("database name is required")}
	}
	if opts.Collection == "" {
		return nil, &goagg.SourceError{Op: "validate", Err: fmt.Errorf("collection name is required")}
	}

	return &MongoSource{opts: opts}, nil
}

// connect establishes the client connection and opens the cursor.
func (m *MongoSource) connect(ctx context.Context) error {
	clientOpts := options.Client().
		ApplyURI(m.opts.URI).
		SetConnectTimeout(m.opts.Timeout).
		SetMaxPoolSize(m.opts.MaxPoolSize)

	if m.opts.Username != "" && m.opts.Password != "" {
		auth := options.Credential{
			Username:   m.opts.Username,
			Password:   m.opts.Password,
			AuthSource: m.opts.AuthDatabase,
		}
		if auth.AuthSource == "" {
			auth.AuthSource = m.opts.Database
		}
		clientOpts.SetAuth(auth)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return &goagg.SourceError{Op: "connect", Err: err}
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return &goagg.SourceError{Op: "ping", Err: err}
	}

	collection := client.Database(m.opts.Database).Collection(m.opts.Collection)

	var cursor *mongo.Cursor
	if len(m.opts.Pipeline) > 0 {
		aggOpts := options.Aggregate().SetBatchSize(m.opts.BatchSize)
		pipeline := make(mongo.Pipeline, 0, len(m.opts.Pipeline))
		for _, stage := range m.opts.Pipeline {
			stageDoc := make(bson.D, 0, len(stage))
			for key, value := range stage {
				stageDoc = append(stageDoc, bson.E{Key: key, Value: value})
			}
			pipeline = append(pipeline, stageDoc)
		}
		cursor, err = collection.Aggregate(ctx, pipeline, aggOpts)
		if err != nil {
			client.Disconnect(ctx)
			return &goagg.SourceError{Op: "aggregate", Err: err}
		}
	} else {
		findOpts := options.Find().SetBatchSize(m.opts.BatchSize)
		if m.opts.Projection != nil {
			findOpts.SetProjection(m.opts.Projection)
		}
		if m.opts.Sort != nil {
			findOpts.SetSort(m.opts.Sort)
		}
		if m.opts.Limit > 0 {
			findOpts.SetLimit(m.opts.Limit)
		}
		filter := m.opts.Filter
		if filter == nil {
			filter = bson.M{}
		}
		cursor, err = collection.Find(ctx, filter, findOpts)
		if err != nil {
			client.Disconnect(ctx)
			return &goagg.SourceError{Op: "find", Err: err}
		}
	}

	m.client = client
	m.cursor = cursor
	m.connected = true
	return nil
}

// Next implements the goagg.Source interface. Thread-safe.
func (m *MongoSource) Next(ctx context.Context) (goagg.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, &goagg.SourceError{Op: "next", Err: ctx.Err()}
	default:
	}

	if !m.connected {
		if err := m.connect(ctx); err != nil {
			return nil, err
		}
	}

	if !m.cursor.Next(ctx) {
		if err := m.cursor.Err(); err != nil {
			return nil, &goagg.SourceError{Op: "cursor_next", Err: err}
		}
		return nil, io.EOF
	}

	var doc bson.M
	if err := m.cursor.Decode(&doc); err != nil {
		return nil, &goagg.SourceError{Op: "decode", Err: err}
	}
	m.docsRead++

	record := make(goagg.Record, len(doc))
	for key, value := range doc {
		record[key] = convertBSONValue(value)
	}
	return record, nil
}

// Close implements the goagg.Source interface.
func (m *MongoSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error
	if m.cursor != nil {
		if err := m.cursor.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("closing cursor: %w", err))
		}
		m.cursor = nil
	}
	if m.client != nil {
		if err := m.client.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("disconnecting: %w", err))
		}
		m.client = nil
	}
	m.connected = false

	if len(errs) > 0 {
		return &goagg.SourceError{Op: "close", Err: fmt.Errorf("multiple errors: %v", errs)}
	}
	return nil
}

// Documents returns the number of documents yielded so far.
func (m *MongoSource) Documents() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.docsRead
}

// convertBSONValue maps BSON values to plain Go types so records look the
// same regardless of which source produced them.
func convertBSONValue(value interface{}) interface{} {
	switch v := value.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case primitive.DateTime:
		return v.Time()
	case primitive.Timestamp:
		return time.Unix(int64(v.T), 0)
	case primitive.Decimal128:
		return v.String()
	case int32:
		return int64(v)
	case bson.M:
		result := make(map[string]interface{}, len(v))
		for k, val := range v {
			result[k] = convertBSONValue(val)
		}
		return result
	case bson.A:
		result := make([]interface{}, len(v))
		for i, val := range v {
			result[i] = convertBSONValue(val)
		}
		return result
	default:
		return v
	}
}
