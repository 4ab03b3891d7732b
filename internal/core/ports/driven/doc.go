// Package driven provides interfaces for infrastructure adapters
// (secondary/outbound ports): persistence, embeddings, text extraction
// and blob storage. Services depend on these interfaces, never on
// concrete adapters.
package driven
