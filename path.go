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
	"regexp"
	"strings"

	"github.com/q-logic/firestore/internal/fserr"
)

// A CollectionRef refers to a collection of documents, like "States" or
// "States/Wisconsin/Cities". The zero value is not usable; obtain one from
// Client.Collection, DocumentRef.Collection or a snapshot reference.
type CollectionRef struct {
	c *Client

	// Parent is the document that contains this collection, or nil for a
	// top-level collection.
	Parent *DocumentRef

	// Path is the full resource name of the collection, e.g.
	// "projects/P/databases/(default)/documents/States/Wisconsin/Cities".
	Path string

	// ID is the last component of the path.
	ID string

	// Query is the query over all documents directly in the collection.
	Query
}

// A DocumentRef refers to a single document.
type DocumentRef struct {
	// Parent is the collection that contains the document.
	Parent *CollectionRef

	// Path is the full resource name of the document.
	Path string

	// ID is the last component of the path.
	ID string
}

// Collection returns a reference to the collection at the given path,
// a slash-separated sequence with an odd number of non-empty components,
// like "States" or "States/Wisconsin/Cities".
func (c *Client) Collection(collPath string) *CollectionRef {
	parts := strings.Split(collPath, "/")
	if len(parts)%2 == 0 {
		return invalidCollRef(c, "firestore: collection path %q has an even number of components", collPath)
	}
	if hasEmpty(parts) {
		return invalidCollRef(c, "firestore: collection path %q has an empty component", collPath)
	}
	coll := newTopCollRef(c, parts[0])
	for i := 1; i < len(parts); i += 2 {
		coll = coll.Doc(parts[i]).Collection(parts[i+1])
	}
	return coll
}

// Doc returns a reference to the document at the given path, a
// slash-separated sequence with an even number of non-empty components,
// like "States/Wisconsin".
func (c *Client) Doc(docPath string) (*DocumentRef, error) {
	i := strings.LastIndex(docPath, "/")
	if i < 0 {
		return nil, fserr.Newf(fserr.InvalidArgument, nil, "firestore: document path %q has an odd number of components", docPath)
	}
	coll := c.Collection(docPath[:i])
	if coll.err != nil {
		return nil, coll.err
	}
	return coll.Doc(docPath[i+1:]), nil
}

// Doc returns a reference to the document in the collection with the
// given ID.
func (cr *CollectionRef) Doc(id string) *DocumentRef {
	return &DocumentRef{
		Parent: cr,
		Path:   cr.Path + "/" + id,
		ID:     id,
	}
}

// Collection returns a reference to the sub-collection of the document
// with the given ID.
func (dr *DocumentRef) Collection(id string) *CollectionRef {
	c := dr.Parent.c
	path := dr.Path + "/" + id
	return &CollectionRef{
		c:      c,
		Parent: dr,
		Path:   path,
		ID:     id,
		// The parent resource of a query over a nested collection is the
		// containing document.
		Query: newQuery(c, dr.Path, path, id, false),
	}
}

func newTopCollRef(c *Client, id string) *CollectionRef {
	path := c.documentsRoot() + "/" + id
	return &CollectionRef{
		c:     c,
		Path:  path,
		ID:    id,
		Query: newQuery(c, c.documentsRoot(), path, id, false),
	}
}

func invalidCollRef(c *Client, format string, args ...interface{}) *CollectionRef {
	return &CollectionRef{
		c:     c,
		Query: Query{c: c, err: fserr.Newf(fserr.InvalidArgument, nil, format, args...)},
	}
}

// Google SQL syntax for an unquoted field.
var unquotedFieldRE = regexp.MustCompile("^[A-Za-z_][A-Za-z_0-9]*$")

// A FieldPath is a dot-separated sequence of field names, like "a.b.c".
// A component that is not a valid unquoted identifier must be quoted with
// backticks when it is sent to the service; callers pass plain components
// and quoting happens during rendering.
type FieldPath string

// toServiceFieldPath converts a field path into the form the service
// expects: dot-separated components, quoted with backticks where needed.
func toServiceFieldPath(fp FieldPath) string {
	parts := strings.Split(string(fp), ".")
	for i, p := range parts {
		parts[i] = toServiceFieldPathComponent(p)
	}
	return strings.Join(parts, ".")
}

// toServiceFieldPathComponent returns a string that represents key and is a
// valid field path component. Components must be quoted with backticks if
// they don't match unquotedFieldRE.
func toServiceFieldPathComponent(key string) string {
	if unquotedFieldRE.MatchString(key) {
		return key
	}
	var b strings.Builder
	b.WriteRune('`')
	for _, r := range key {
		if r == '`' || r == '\\' {
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	b.WriteRune('`')
	return b.String()
}

// docRefFromName resolves a document resource name returned by the service
// into a DocumentRef. The name must lie under the client's database.
func docRefFromName(c *Client, name string) (*DocumentRef, error) {
	root := c.documentsRoot() + "/"
	if !strings.HasPrefix(name, root) {
		return nil, fserr.Newf(fserr.Internal, nil, "firestore: document name %q not under database %q", name, c.path())
	}
	rel := strings.TrimPrefix(name, root)
	parts := strings.Split(rel, "/")
	if len(parts)%2 != 0 || hasEmpty(parts) {
		return nil, fserr.Newf(fserr.Internal, nil, "firestore: %q is not a valid document name", name)
	}
	coll := newTopCollRef(c, parts[0])
	doc := coll.Doc(parts[1])
	for i := 2; i < len(parts); i += 2 {
		doc = doc.Collection(parts[i]).Doc(parts[i+1])
	}
	return doc, nil
}

func hasEmpty(parts []string) bool {
	for _, p := range parts {
		if p == "" {
			return true
		}
	}
	return false
}
