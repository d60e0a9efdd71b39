// Package store implements the object store that maps (namespace, identifier)
// pairs onto StoragePath/<namespace>/<identifier> files. Writes go through a
// temp file + rename so readers never observe partial objects, and the
// namespace directory is created lazily on first write. The retrieval service
// depends only on the Store interface so the filesystem can be swapped for a
// different backing store without touching callers.
package store
