// Package testutil provides shared test helpers and fixtures.
//
// Prefer a real SQLite database over mocks, and register cleanup via
// t.Cleanup so tests stay leak-free. Most packages start with:
//
//	database := testutil.NewTestDB(t)
//	event := testutil.MakeCrisisEvent(t, database, testutil.EventForUser("u1"))
package testutil
