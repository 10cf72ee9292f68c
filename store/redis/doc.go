// Package redis implements the authgate credential store on Redis.
//
// Each identity lives in a hash keyed by id, with secondary index keys for
// email, federated id, and the live refresh token. Every multi-key mutation
// runs as a Lua script, so uniqueness checks and the refresh rotation
// compare-and-swap stay atomic across processes sharing the instance.
package redis
