// Package comment implements comments on documents: public creation and
// voting, owner replies, moderation and the cached read path.
//
// Files in this package:
//   - types.go      — filters, views, inputs and vote events
//   - repository.go — Repository interface and its gorm implementation
//   - cache.go      — approved-list cache, vote counts and the vote pool
//   - service.go    — creation, admin listing and reply trees
//   - handler.go    — Handler struct, route registration, and HTTP handlers
//   - voteguard.go  — per-client vote limiting backed by redis
//   - helpers.go    — cache keys, vote aggregation and tree assembly
package comment
