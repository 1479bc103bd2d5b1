// Package preflight decides which external programs a batch needs and checks
// that they are present and answer their self-tests before any job starts.
//
// The run command calls RunAll and aborts on the first failed result; the
// deps command renders the same results as a table.
package preflight
