// Package guard composes the protection layer around Blender bridge
// commands: admission control first, then the response cache, then the
// bridge itself.
//
// Every call follows the same path. A rate-limit token is consumed, a
// concurrency slot is acquired, and only then does the command reach the
// bridge. Queries consult the cache before crossing the wire and store
// the response afterwards; mutations and scripts skip the cache on the
// way in and invalidate the affected namespaces on the way out.
//
// A Guard owns its cache and limiter. The bridge Commander and the
// Observer are injected, so their lifecycles stay with the caller.
package guard
