// Package secrets is the persistence layer behind the credential store.
//
// Values are kept in the secure_entries table of the local SQLite database
// and are expected to be sealed by the caller; the repository never sees
// plaintext. Keys are namespaced with an application prefix, e.g.
// "careercoach.session" and "careercoach.profile".
//
// SQLiteRepository is built on dbx.DBTX, so the same code runs against a
// *sql.DB or inside dbx.WithTx.
package secrets
