// Package ratelimit guards the Blender bridge against request floods and
// connection exhaustion.
//
// A Limiter combines continuously-refilling per-key token buckets with a
// global concurrency slot counter. Scripting commands draw from their own,
// smaller bucket because arbitrary code blocks the bridge far longer than
// a scene query. Denials never block: callers get a Result carrying a
// retry hint and decide for themselves.
package ratelimit
