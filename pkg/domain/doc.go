/*
Package domain contains the core models of the arbor engine.

It defines the compiled template artifact the engine consumes and the
snapshots it produces. This package is kept pure and free of I/O so that
loaders, state sources and presentation adapters can share it.

# Key Entities

  - Template: the compiled artifact (constant tables plus an ordered list of Expressions).
  - Expression: StaticNode, For, If, Else, Block and With control-flow variants.
  - ValueExpr: value expressions (literals, paths, operators, calls) referenced by id.
  - NodeSnapshot: a serialisable view of the generated node tree.
*/
package domain
