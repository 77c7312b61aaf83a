// package repositories provides the persistence layer over SQLite.
//
// TokenRepository is the durable TokenStore backing the OAuth token
// lifecycle; LibraryRepository and TopFiveRepository hold the reading
// shelf. All writes are upserts keyed by user identity so repeated calls
// never accumulate duplicate rows.
package repositories
