// Package visit records page views. Hits are buffered in a batching pool
// and written to the visits table in bulk.
//
// Files in this package:
//   - types.go: hit input and summary rows
//   - service.go: Recorder (pool + bulk insert) and summary queries
//   - middleware.go: records public document reads
//   - handler.go: public hit endpoint and admin summary
package visit
