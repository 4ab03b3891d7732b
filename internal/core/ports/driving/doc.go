// Package driving provides interfaces for external actors
// (primary/inbound ports): document ingestion and retrieval.
package driving
