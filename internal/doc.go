// Package internal holds the parts of goAuthClient that are not public API.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: envelope decoding and one function per auth endpoint
//   - authtest: an in-process implementation of the auth API for tests and demos
//
// # What this package must NOT do
//
//   - Export types that appear in the public goAuthClient API, other than
//     through aliases declared in the root package.
//   - Be imported by any package outside the goAuthClient module.
package internal
