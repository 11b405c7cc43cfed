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

package firestore_test

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/q-logic/firestore"
)

func ExampleDial() {
	ctx := context.Background()
	client, cleanup, err := firestore.Dial(ctx, "my-project")
	if err != nil {
		log.Fatal(err)
	}
	defer cleanup()

	_ = client
}

func ExampleQuery_Get() {
	ctx := context.Background()
	client, cleanup, err := firestore.Dial(ctx, "my-project")
	if err != nil {
		log.Fatal(err)
	}
	defer cleanup()

	q := client.Collection("States").
		Where("pop", ">", 1000000).
		OrderBy("pop", firestore.Desc).
		Limit(10)
	snaps, err := q.Get(ctx)
	if err != nil {
		log.Fatal(err)
	}
	for _, snap := range snaps {
		fmt.Println(snap.Ref.ID, snap.Data())
	}
}

func ExampleQuery_Documents() {
	ctx := context.Background()
	client, cleanup, err := firestore.Dial(ctx, "my-project")
	if err != nil {
		log.Fatal(err)
	}
	defer cleanup()

	iter := client.Collection("States").Documents(ctx)
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(snap.Ref.ID)
	}
}

func ExampleQuery_LimitToLast() {
	ctx := context.Background()
	client, cleanup, err := firestore.Dial(ctx, "my-project")
	if err != nil {
		log.Fatal(err)
	}
	defer cleanup()

	// The ten states with the smallest populations, largest first.
	q := client.Collection("States").OrderBy("pop", firestore.Desc).LimitToLast(10)
	snaps, err := q.Get(ctx)
	if err != nil {
		log.Fatal(err)
	}
	for _, snap := range snaps {
		fmt.Println(snap.Ref.ID)
	}
}

func ExampleCollectionGroup_RunPartitionedQueries() {
	ctx := context.Background()
	client, cleanup, err := firestore.Dial(ctx, "my-project")
	if err != nil {
		log.Fatal(err)
	}
	defer cleanup()

	// Scan every "Cities" collection in the database, in parallel.
	err = client.CollectionGroup("Cities").RunPartitionedQueries(ctx, 8,
		func(ctx context.Context, q firestore.Query) error {
			snaps, err := q.Get(ctx)
			if err != nil {
				return err
			}
			for _, snap := range snaps {
				fmt.Println(snap.Ref.Path)
			}
			return nil
		})
	if err != nil {
		log.Fatal(err)
	}
}
