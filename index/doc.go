// Package index defines the similarity index used to serve queries.
//
// A Client hands out named Collections. Collections accept upserts of
// reconciled chunk records and answer nearest neighbour queries. Two
// implementations exist: index/chroma talks to a Chroma server over REST and
// storage/badger keeps an embedded collection on disk.
//
// Errors are classified with core.ErrIndexUnavailable (transient, retried by
// Connect) and core.ErrIndexRejected (fatal).
package index
