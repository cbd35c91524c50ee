// Package aggregates implements the prompt family aggregate on gorm. Each
// write runs in one transaction that locks the family root, checks the
// version-chain rules against the locked state, and records an activity
// event only after commit.
package aggregates
