// Package server is the HTTP/JSON transport over the storage engine.
//
// # Routes
//
//	POST   /api/v1/stores                     create a store
//	GET    /api/v1/stores                     describe all stores
//	PUT    /api/v1/stores/{store}/keys/{key}  store a value
//	GET    /api/v1/stores/{store}/keys/{key}  fetch a value
//	DELETE /api/v1/stores/{store}/keys/{key}  delete a value
//	GET    /api/v1/stores/{store}/keys        list keys
//	GET    /health                            health descriptor
//	GET    /metrics                           prometheus exposition
//
// Responses carry the schema's (success, message) pair. Failure kinds map
// onto HTTP statuses: NotFound is 404, AlreadyExists is 409, every
// validation and routing failure is 400; the engine's taxonomy never
// surfaces as a 500.
//
// The transport is deliberately thin. It decodes requests, calls one
// engine method and renders the result; every semantic decision lives in
// the engine so another transport could replace this one wholesale.
package server
