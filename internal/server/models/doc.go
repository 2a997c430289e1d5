// Package models defines server-side data models persisted by the
// credential store.
package models
