// Package aggregates holds the write-side vocabulary of the prompt engine:
// error codes, mutation inputs and results, and the contract of the prompt
// family aggregate. Every version in a family shares one lock (the root row)
// and exactly one member is active after each committed write.
package aggregates
