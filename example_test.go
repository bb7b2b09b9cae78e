package surrealdb_test

import (
	"context"
	"errors"
	"fmt"

	surrealdb "github.com/surrealdb/surrealdriver"
	"github.com/surrealdb/surrealdriver/internal/fakesdb"
	"github.com/surrealdb/surrealdriver/pkg/logger"
	"github.com/surrealdb/surrealdriver/pkg/models"
)

// mustOpen starts an in-process server and connects to it over scheme.
func mustOpen(scheme string) (*surrealdb.DB, func()) {
	server := fakesdb.NewServer("127.0.0.1:0")
	if err := server.Start(); err != nil {
		panic(err)
	}

	db, err := surrealdb.Open(context.Background(), &surrealdb.Config{
		Endpoint:  server.URL(scheme),
		Namespace: "test",
		Database:  "test",
		Logger:    logger.Nop(),
	})
	if err != nil {
		panic(err)
	}
	return db, func() {
		_ = db.Close(context.Background())
		_ = server.Stop()
	}
}

func ExampleDB_Query() {
	db, cleanup := mustOpen("ws")
	defer cleanup()

	resp, err := db.Query(context.Background(),
		"RETURN $a + $b; THROW 'not allowed'; RETURN 'done'",
		map[string]any{"a": 40, "b": 2})
	if err != nil {
		panic(err)
	}

	for _, o := range resp.Outcomes() {
		if err := o.Err(); err != nil {
			fmt.Printf("%d: %v\n", o.Index, err)
			continue
		}
		v, err := o.First()
		if err != nil {
			panic(err)
		}
		fmt.Printf("%d: %s\n", o.Index, v)
	}

	// Output:
	// 0: 42
	// 1: surrealdb: statement 1: not allowed
	// 2: "done"
}

func ExampleDecodeAll() {
	db, cleanup := mustOpen("http")
	defer cleanup()
	ctx := context.Background()

	type Person struct {
		ID   models.RecordID `json:"id"`
		Name string          `json:"name"`
		Tags []string        `json:"tags,omitempty"`
	}

	for _, p := range []Person{
		{ID: models.NewRecordID("person", "jaime"), Name: "Jaime"},
		{ID: models.NewRecordID("person", "tobie"), Name: "Tobie", Tags: []string{"founder"}},
	} {
		if _, err := db.Create(ctx, p.ID, map[string]any{"name": p.Name, "tags": p.Tags}); err != nil {
			panic(err)
		}
	}

	o, err := db.Select(ctx, "person")
	if err != nil {
		panic(err)
	}
	people, err := surrealdb.DecodeAll[Person](o)
	if err != nil {
		panic(err)
	}
	for _, p := range people {
		fmt.Printf("%s %s %v\n", p.ID, p.Name, p.Tags)
	}

	// Output:
	// person:jaime Jaime []
	// person:tobie Tobie [founder]
}

func ExampleDB_Modify() {
	db, cleanup := mustOpen("ws")
	defer cleanup()
	ctx := context.Background()

	if _, err := db.Create(ctx, "person:tobie", map[string]any{"name": "Tobie", "age": 30}); err != nil {
		panic(err)
	}

	o, err := db.Modify(ctx, "person:tobie", []surrealdb.PatchData{
		{Op: "replace", Path: "/age", Value: 31},
		{Op: "add", Path: "/email", Value: "tobie@example.com"},
	})
	if err != nil {
		panic(err)
	}
	v, err := o.First()
	if err != nil {
		panic(err)
	}
	fmt.Println(v)

	_, err = db.Modify(ctx, "person:tobie", []surrealdb.PatchData{{Op: "rename", Path: "/age"}})
	var patchErr *surrealdb.PatchError
	fmt.Println(errors.As(err, &patchErr), err)

	// Output:
	// {age: 31, email: "tobie@example.com", id: person:tobie, name: "Tobie"}
	// true surrealdb: invalid patch operation 0: unknown op "rename"
}
