// Package store defines interfaces for the job datastore and the bot visit
// table. Implementations live under internal/storage; this package must not
// import database drivers or concrete clients.
package store
