// Package store is the read-only Postgres query layer over the MES event
// tables. A single shared pgx pool is injected at construction; every
// query acquires a connection from the pool and releases it on return.
// Schema and table identifiers are validated against a fixed registry
// before they are interpolated into SQL; all values travel as parameters.
package store
