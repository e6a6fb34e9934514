// Package http serves the exam allocation timeline API.
//
// The router exposes the following endpoints:
//   - GET /healthz: reports database reachability as {"status"}.
//   - GET /rooms: the room catalogue as {"rooms":[roomDTO]}.
//   - GET /allocations?from=&to=&room=: allocations overlapping the RFC3339
//     window [from, to), optionally restricted to one room, as
//     {"allocations":[allocationDTO]}.
//   - GET /allocations/{id}: a single allocation as {"allocation"}.
//   - PUT /allocations/{id}: replaces rooms, window, seats and notes. Body is
//     updateAllocationRequest. A change that would put a room over capacity is
//     rejected with 409 and error_code "capacity_conflict" unless
//     "confirm_overbooking" is true.
//   - POST /timeline/resolve: previews the interval a nudge or drag produces.
//   - POST /timeline/capacity: previews the seat usage of a room after a
//     placement.
//
// Writes require the operator key (X-Operator-Key or a Bearer token) when one
// is configured and are rate limited. Errors use the envelope
// {"error_code","message","errors"} with Japanese messages.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
