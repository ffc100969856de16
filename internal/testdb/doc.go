// Package testdb provides database helpers for tests.
//
// Every helper returns a fully migrated *sql.DB that is closed when the test
// ends. SQLite databases live in memory and are private to the test that
// opened them, so tests using them can call t.Parallel() freely.
//
// PostgreSQL is used only when GENJOBS_TEST_DATABASE_URL is set; tests that
// ask for it are skipped otherwise. PostgreSQL databases are shared between
// tests, so tests must use unique object identifiers instead of relying on
// empty tables.
//
// Basic usage:
//
//	func TestMyFeature(t *testing.T) {
//	    t.Parallel()
//	    for _, driver := range testdb.Drivers() {
//	        t.Run(driver, func(t *testing.T) {
//	            db := testdb.Open(t, driver)
//	            results := sqlstore.NewResultStore(db, nil)
//	            // ...
//	        })
//	    }
//	}
package testdb
