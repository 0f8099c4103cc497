// Package storage persists the tracker sets, the notification history, the
// onboarding flag and an audit trail of user actions.
//
// Values are opaque bytes addressed by field name. All mutation goes through
// Store.Update, which runs a function against a transaction and commits its
// writes atomically, or not at all when the function fails.
//
// Drivers:
//   - "memory": process-local, for tests and dry runs
//   - "file":   JSON snapshot + append-only journal, flock-serialized
//   - "sqlite": modernc.org/sqlite, BEGIN IMMEDIATE transactions
package storage
