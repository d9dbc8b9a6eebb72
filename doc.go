// Package circulate implements the lending core of a library application:
// catalog search behind a read-through cache, borrow/return coordination
// with an atomic copy counter, admin book management, singleton settings,
// and overdue-fine computation.
//
// Components:
//   - CatalogStore / LoanStore / SettingsStore: authoritative records in a
//     document store (implementations in store/mongo and store/memory).
//   - provider.Provider: byte store with TTL (Redis, BigCache, sturdyc).
//   - codec.Codec[V]: (de)serializes catalog snapshots <-> []byte.
//
// Cache keys:
//
//	books:all       - unfiltered catalog listing
//	search:<query>  - filtered listing; query trimmed and lowercased
//
// Entries expire after 60 seconds (passive, no active eviction). Every
// catalog mutation - add, delete, borrow, return - deletes books:all and
// all search:* keys, because any of them may reflect stale availability.
// The cache is an optimization, never a dependency: when the backend is
// unreachable the request falls through to the store and the failure is
// only logged.
//
// The only atomicity boundary is the single conditional update on the
// book document: decrement-if-positive on borrow, increment on return.
// Loan creation is a separate write; if it fails after the decrement, the
// coordinator restocks the copy (best effort, logged).
package circulate
