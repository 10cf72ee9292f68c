// Package postgres implements the authgate credential store on PostgreSQL
// via database/sql and lib/pq.
//
// Uniqueness of email and federated id is enforced by database constraints;
// constraint violations surface as the authgate duplicate sentinels. Refresh
// rotation relies on a conditional UPDATE, so the compare-and-swap holds
// across every process sharing the database.
package postgres
