// Package session orchestrates concurrent access to persisted story
// sessions: per-session locks above a StateStore so two callers cannot
// interleave a load-mutate-save cycle.
package session
