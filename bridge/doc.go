// Package bridge speaks the Blender addon's TCP protocol.
//
// A Client holds one persistent connection to the addon's command socket
// and round-trips JSON commands over it: {"type","params"} out, a
// {"status","result","message"} envelope back. The socket is strictly
// request/response, so commands serialize on the connection; logical
// concurrency is bounded upstream by the ratelimit package.
//
// Transport failures drop the connection and the next command redials
// with exponential backoff. A circuit breaker fails fast while Blender
// stays unreachable. Errors Blender itself reports never trip the
// breaker; a Python exception in user code says nothing about the health
// of the socket.
package bridge
