/*
Package dsl provides a Go DSL (Domain Specific Language) for programmatically constructing Arbor templates.

It allows developers to describe node trees using a type-safe, fluent builder
instead of relying on external YAML or JSON artifacts. This is particularly
useful for unit testing and for embedding small views in Go programs.

Example usage:

	b := dsl.New("main")
	b.Add(
		dsl.Node("header").Text("title").Attr("bold", "true"),
		dsl.For("item", "items",
			dsl.Node("row").Text("item.name"),
		),
		dsl.If("items == []", dsl.Node("text").Text("'nothing here'")),
	)

	tpl, err := b.Build()

Value sources (Text, Attr, conditions, collections) use the value
expression syntax: paths, literals, operators and function calls.
*/
package dsl
