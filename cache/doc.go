// Package cache provides a bounded TTL response cache for Blender bridge
// commands.
//
// The store is generic over the cached value type, expires entries lazily
// on read, and evicts a single least-used entry when a store at capacity
// receives another value. Keys follow the scene:/object: namespace
// convention so whole scopes can be invalidated after mutations.
package cache
