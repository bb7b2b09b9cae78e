// Command surreal runs queries against a SurrealDB server.
package main

import (
	"context"

	"github.com/surrealdb/surrealdriver/cmd/surreal/cmd"
)

func main() {
	cmd.Execute(context.Background())
}
