// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing round records and runs. They are not
// intended for production usage.
package testutil
