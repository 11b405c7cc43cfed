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

package firestore

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"

	"github.com/google/wire"
	"github.com/q-logic/firestore/internal/fserr"
	"github.com/q-logic/firestore/internal/oc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"

	pb "google.golang.org/genproto/googleapis/firestore/v1"
)

const pkgName = "github.com/q-logic/firestore"

var (
	latencyMeasure = oc.LatencyMeasure(pkgName)

	// OpenCensusViews are predefined views for OpenCensus metrics.
	// The views include counts and latency distributions for API method calls.
	OpenCensusViews = oc.Views(pkgName, latencyMeasure)
)

// DefaultDatabaseID is the ID of the default database of a project.
const DefaultDatabaseID = "(default)"

const endPoint = "firestore.googleapis.com:443"

// A Client provides access to the documents of a single Firestore database.
// It is safe for concurrent use by multiple goroutines.
//
// Authentication, connection management and retries belong to the
// underlying gRPC connection; the Client only issues query RPCs over it.
type Client struct {
	c          pb.FirestoreClient
	projectID  string
	databaseID string
	tracer     *oc.Tracer
}

// NewClient returns a Client that issues RPCs for the given project's
// default database over conn.
func NewClient(conn grpc.ClientConnInterface, projectID string) (*Client, error) {
	return NewClientWithDatabase(conn, projectID, DefaultDatabaseID)
}

// NewClientWithDatabase is like NewClient, but for a named database.
func NewClientWithDatabase(conn grpc.ClientConnInterface, projectID, databaseID string) (*Client, error) {
	if projectID == "" {
		return nil, fserr.Newf(fserr.InvalidArgument, nil, "firestore: missing project ID")
	}
	if databaseID == "" {
		return nil, fserr.Newf(fserr.InvalidArgument, nil, "firestore: missing database ID")
	}
	fc := pb.NewFirestoreClient(conn)
	return &Client{
		c:          fc,
		projectID:  projectID,
		databaseID: databaseID,
		tracer: &oc.Tracer{
			Package:        pkgName,
			Provider:       oc.ProviderName(fc),
			LatencyMeasure: latencyMeasure,
		},
	}, nil
}

// Dial connects to the Firestore service and returns a client for the
// project's default database, along with a clean-up function to close the
// connection after use.
// If the 'FIRESTORE_EMULATOR_HOST' environment variable is set the client
// connects to the firestore emulator instead, over an insecure connection.
func Dial(ctx context.Context, projectID string, opts ...grpc.DialOption) (*Client, func(), error) {
	target := endPoint
	if host := os.Getenv("FIRESTORE_EMULATOR_HOST"); host != "" {
		target = host
		opts = append(opts, grpc.WithInsecure())
	} else {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{})))
	}
	conn, err := grpc.DialContext(ctx, target, opts...)
	if err != nil {
		return nil, nil, err
	}
	c, err := NewClient(conn, projectID)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return c, func() { conn.Close() }, nil
}

// Set holds Wire providers for this package.
var Set = wire.NewSet(
	Dial,
)

// path returns the resource path of the database,
// e.g. "projects/P/databases/(default)".
func (c *Client) path() string {
	return fmt.Sprintf("projects/%s/databases/%s", c.projectID, c.databaseID)
}

// documentsRoot returns the resource path that prefixes every document name
// in the database.
func (c *Client) documentsRoot() string {
	return c.path() + "/documents"
}

// resourcePrefixHeader is the name of the metadata header used to indicate
// the resource being operated on.
const resourcePrefixHeader = "google-cloud-resource-prefix"

// withResourceHeader returns a new context that includes resource in a
// special header. Firestore uses the resource header for routing.
func withResourceHeader(ctx context.Context, resource string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	md[resourcePrefixHeader] = []string{resource}
	return metadata.NewOutgoingContext(ctx, md)
}
