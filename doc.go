/*
Package arbor is a reactive node-tree engine for terminal user interfaces.

It generates a tree of nodes from a compiled template and keeps that tree in step with a runtime State, re-evaluating only the nodes whose inputs changed.

# Concept

A template is a list of expressions: elements with text and attributes, loops (for), conditionals (if / else), blocks and bindings (with). The engine resolves the values those expressions read from a scope chain backed by the State, and records which State entries each node read. When an entry changes, only its readers are marked dirty; the next Tick re-evaluates them top-down, tearing down and rebuilding subtrees where a branch or a collection changed.

# Key Features

  - Fine-grained updates: subscriptions are per node and per State entry.
  - Null propagation: a missing value evaluates to Null instead of failing.
  - Path addressing: every node is reachable by its index path, e.g. [0.2.1].
  - Hexagonal Architecture: templates, State documents and layout are ports with file, memory and Redis adapters.

# Usage

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/aretw0/arbor"
		"github.com/aretw0/arbor/pkg/adapters/memory"
		"github.com/aretw0/arbor/pkg/dsl"
	)

	func main() {
		loader, err := dsl.New("main").Add(
			dsl.For("item", "items", dsl.Node("item").Text("item")),
		).Loader()
		if err != nil {
			log.Fatal(err)
		}

		eng, err := arbor.New("",
			arbor.WithLoader(loader),
			arbor.WithSource(memory.NewSource(map[string]any{"items": []any{"a", "b"}})),
		)
		if err != nil {
			log.Fatal(err)
		}

		ctx := context.Background()
		if _, err := eng.Start(ctx); err != nil {
			log.Fatal(err)
		}

		// Mutations dirty only the nodes that read the changed values.
		if _, err := eng.Push(ctx, "items", "c"); err != nil {
			log.Fatal(err)
		}
		fmt.Println(len(eng.Snapshot()[0].Children)) // 3
	}
*/
package arbor
