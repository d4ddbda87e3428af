// Package dispatch answers the host's inbound notifications and requests.
//
// The dispatcher is installed as the rpc.Handler of the host connection. Its
// methods run on the connection's read goroutine, so they only resolve the
// target handler and hand the work to a fiber. Messages that resolve to no
// handler are answered on the spot without a fiber.
//
// Request replies:
//   - runCommand → true, or false when unknown or the command fails
//   - askCondition → the predicate result, or false
//   - eventFilter, keyEventFilter → whether any filter handled the event
//   - cmdEventFilter → [handled, name, args] with the filters' rewrites
//   - translate → answered synchronously from cached translation files
//   - removePackage → true, or an error reply
//   - sendGetRequest → the response body, or an error reply
//   - anything else → error reply "unknown method"
//
// Every request is answered exactly once. A failing or panicking handler is
// caught at the fiber boundary and its request receives the failure reply.
package dispatch
