// Package store keeps blog documents as MDX files in a remote repository.
//
// Files in this package:
//   - types.go: Document, Remote, inputs and results
//   - service.go: Store and the document operations
//   - move.go: move, archive and unarchive
//   - category.go: category listing and marker files
//   - cache.go: file and directory TTL cache
//   - helpers.go: path resolution and meta normalization
package store
