// Package api exposes an exploration session as a JSON HTTP API.
//
// Query and search responses carry an "outcome" of success, rejected or
// failed. Rejected requests (422) never reached the database; failed ones
// did and timed out (504) or errored (502). An optional "view" object
// returns a grid window (search, sort, page) over the result.
package api
