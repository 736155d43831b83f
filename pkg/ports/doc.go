/*
Package ports defines the driven ports (interfaces) for the arbor engine.

These interfaces decouple the node-tree generator from external
implementations, allowing it to work with various state backends, template
sources and layout algorithms.

# Key Interfaces

  - State: runtime data the templates read from, addressed through value refs.
  - Source: loads a plain data document (file, Redis, memory) to seed or sync the State.
  - TemplateLoader: retrieves compiled templates (e.g., from files or memory).
  - Layout: measures generated nodes for a render surface.
*/
package ports
