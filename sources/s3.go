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
	"path/filepath"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aaronlmathis/goagg"
)

// S3SourceOptions configures the S3 source.
type S3SourceOptions struct {
	Bucket         string          // S3 bucket name
	Prefix         string          // Key prefix filter
	Suffix         string          // Key suffix filter (e.g. ".csv")
	Region         string          // AWS region
	Profile        string          // AWS shared config profile
	Credentials    aws.Credentials // Explicit static credentials
	EndpointURL    string          // Custom endpoint (MinIO, LocalStack)
	ForcePathStyle bool            // Path-style addressing for custom endpoints
	MaxKeys        int32           // Page size for object listing
}

// S3SourceOption represents a configuration function for S3SourceOptions.
type S3SourceOption func(*S3SourceOptions)

// WithS3Bucket sets the bucket name.
func WithS3Bucket(bucket string) S3SourceOption {
	return func(opts *S3SourceOptions) {
		opts.Bucket = bucket
	}
}

// WithS3Prefix sets the key prefix filter.
func WithS3Prefix(prefix string) S3SourceOption {
	return func(opts *S3SourceOptions) {
		opts.Prefix = prefix
	}
}

// WithS3Suffix sets the key suffix filter.
func WithS3Suffix(suffix string) S3SourceOption {
	return func(opts *S3SourceOptions) {
		opts.Suffix = suffix
	}
}

// WithS3Region sets the AWS region.
func WithS3Region(region string) S3SourceOption {
	return func(opts *S3SourceOptions) {
		opts.Region = region
	}
}

// WithS3Profile sets the AWS shared config profile.
func WithS3Profile(profile string) S3SourceOption {
	return func(opts *S3SourceOptions) {
		opts.Profile = profile
	}
}

// WithS3Credentials sets explicit static credentials, overriding the default
// credential chain.
func WithS3Credentials(creds aws.Credentials) S3SourceOption {
	return func(opts *S3SourceOptions) {
		opts.Credentials = creds
	}
}

// WithS3Endpoint sets a custom endpoint URL for S3-compatible stores.
func WithS3Endpoint(endpoint string) S3SourceOption {
	return func(opts *S3SourceOptions) {
		opts.EndpointURL = endpoint
	}
}

// WithS3PathStyle enables path-style addressing.
func WithS3PathStyle(pathStyle bool) S3SourceOption {
	return func(opts *S3SourceOptions) {
		opts.ForcePathStyle = pathStyle
	}
}

// WithS3MaxKeys sets the listing page size.
func WithS3MaxKeys(maxKeys int32) S3SourceOption {
	return func(opts *S3SourceOptions) {
		opts.MaxKeys = maxKeys
	}
}

// S3Source streams records from the objects under a bucket prefix. Objects
// are listed eagerly at construction; each object is fetched lazily and
// decoded by extension (.csv via the CSV source, anything else as
// line-delimited JSON), so a multi-gigabyte prefix never has to fit in
// memory at once.
type S3Source struct {
	mu       sync.Mutex
	client   *s3.Client
	keys     []string
	index    int
	current  goagg.Source[goagg.Record]
	opts     S3SourceOptions
	rowsRead int64
}

// NewS3Source creates an S3 source and lists the matching objects.
func NewS3Source(options ...S3SourceOption) (*S3Source, error) {
	opts := S3SourceOptions{
		MaxKeys: 1000,
	}
	for _, option := range options {
		option(&opts)
	}

	if opts.Bucket == "" {
		return nil, &goagg.SourceError{Op: "validate", Err: fmt.Errorf("bucket is required")}
	}

	cfg, err := createAWSConfig(opts)
	if err != nil {
		return nil, &goagg.SourceError{Op: "aws_config", Err: err}
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.EndpointURL != "" {
			o.BaseEndpoint = aws.String(opts.EndpointURL)
		}
		o.UsePathStyle = opts.ForcePathStyle
	})

	source := &S3Source{
		client: client,
		opts:   opts,
	}
	if err := source.listObjects(context.Background()); err != nil {
		return nil, &goagg.SourceError{Op: "list_objects", Err: err}
	}
	return source, nil
}

// createAWSConfig builds the AWS configuration from options.
func createAWSConfig(opts S3SourceOptions) (aws.Config, error) {
	configOpts := []func(*config.LoadOptions) error{}
	if opts.Region != "" {
		configOpts = append(configOpts, config.WithRegion(opts.Region))
	}
	if opts.Profile != "" {
		configOpts = append(configOpts, config.WithSharedConfigProfile(opts.Profile))
	}

	cfg, err := config.LoadDefaultConfig(context.Background(), configOpts...)
	if err != nil {
		return aws.Config{}, err
	}

	if opts.Credentials.AccessKeyID != "" {
		cfg.Credentials = aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(
				opts.Credentials.AccessKeyID,
				opts.Credentials.SecretAccessKey,
				opts.Credentials.SessionToken,
			),
		)
	}
	return cfg, nil
}

// listObjects pages through the bucket listing and collects matching keys.
func (s *S3Source) listObjects(ctx context.Context) error {
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.opts.Bucket),
		MaxKeys: &s.opts.MaxKeys,
	}
	if s.opts.Prefix != "" {
		input.Prefix = aws.String(s.opts.Prefix)
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if s.opts.Suffix != "" && !strings.HasSuffix(key, s.opts.Suffix) {
				continue
			}
			s.keys = append(s.keys, key)
		}
	}
	return nil
}

// Next implements the goagg.Source interface. Thread-safe.
func (s *S3Source) Next(ctx context.Context) (goagg.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, &goagg.SourceError{Op: "next", Err: ctx.Err()}
	default:
	}

	for {
		if s.current == nil {
			if s.index >= len(s.keys) {
				return nil, io.EOF
			}
			if err := s.openObject(ctx, s.keys[s.index]); err != nil {
				return nil, &goagg.SourceError{Op: "open_object", Err: err}
			}
		}

		record, err := s.current.Next(ctx)
		if err == io.EOF {
			s.current.Close()
			s.current = nil
			s.index++
			continue
		}
		if err != nil {
			return nil, err
		}
		s.rowsRead++
		return record, nil
	}
}

// openObject fetches the object body and wraps it in a decoder chosen by
// file extension.
func (s *S3Source) openObject(ctx context.Context, key string) error {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to get object %s: %w", key, err)
	}

	switch strings.ToLower(filepath.Ext(key)) {
	case ".csv":
		source, err := NewCSVSource(result.Body, WithCSVHasHeaders(true))
		if err != nil {
			result.Body.Close()
			return fmt.Errorf("failed to open %s: %w", key, err)
		}
		s.current = source
	default:
		// Everything else is treated as line-delimited JSON.
		s.current = NewJSONSource(result.Body)
	}
	return nil
}

// Close implements the goagg.Source interface.
func (s *S3Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		err := s.current.Close()
		s.current = nil
		return err
	}
	return nil
}

// Keys returns the object keys selected by the listing.
func (s *S3Source) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, len(s.keys))
	copy(keys, s.keys)
	return keys
}

// Rows returns the number of records yielded so far.
func (s *S3Source) Rows() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rowsRead
}
