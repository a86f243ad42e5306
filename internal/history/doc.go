// Package history keeps the query history of one exploration session.
//
// Every execution attempt, whether it succeeded, was rejected before reaching
// the data source, or failed there, produces exactly one Entry. The Store is
// owned by a session: created when the session starts and invalidated when it
// ends. There is no process-wide history.
//
// Ids come from a monotonic Clock and are never reused. Once more than Cap
// entries have been recorded the oldest are evicted first.
package history
