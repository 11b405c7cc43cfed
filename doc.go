// Copyright 2021 The Q-Logic Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package firestore is a client for the query side of Google Cloud
// Firestore: it builds structured queries, runs them over the RunQuery
// streaming RPC, and turns the response stream into document snapshots.
//
// # Queries
//
// A Query is an immutable value. Each builder method (Where, OrderBy,
// Select, Limit, LimitToLast, Offset, StartAt, StartAfter, EndAt,
// EndBefore) returns a new Query and leaves its receiver unchanged, so
// queries can be shared freely, including across goroutines:
//
//	q := client.Collection("States").
//		Where("pop", ">", 10).
//		OrderBy("pop", firestore.Desc).
//		Limit(3)
//
// Run a query either eagerly with Get, which returns all matching
// snapshots, or lazily with Documents, which returns an iterator over
// snapshots as they arrive from the service. Iterators are single-pass;
// always call Stop when done so the underlying stream is released.
//
// LimitToLast queries are only supported by Get: the service can only
// return the first N results, so the client runs the query with reversed
// orderings and re-reverses the materialized results. Documents reports an
// InvalidArgument error for such queries before any RPC is issued.
//
// # Collection groups and partitions
//
// Client.CollectionGroup queries every collection with a given ID anywhere
// in the database. A collection group with no filters, projection, limit or
// offset can be split into disjoint sub-queries for parallel scanning with
// GetPartitionedQueries, or scanned directly with RunPartitionedQueries.
//
// # Errors
//
// Query misconfiguration is reported before any RPC is issued. Errors from
// the service are returned as is; use google.golang.org/grpc/status to
// inspect them. This package performs no retries.
//
// # OpenCensus Integration
//
// This package collects a latency metric and opens a span for each call to
// Query.Get and CollectionGroup.GetPartitionedQueries. To enable metric
// collection in your application, register OpenCensusViews; see the example
// at https://godoc.org/go.opencensus.io/stats/view for usage.
package firestore // import "github.com/q-logic/firestore"
