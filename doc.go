// Package weave provides a dependency-injection kernel with aspect-oriented
// interception. Contracts are requested by type, optionally qualified by a
// name or a condition on the injection site, and are resolved to concrete
// instance graphs on demand. Instance lifetime is controlled by scopes, and
// cross-cutting behavior can be woven around method calls through ordered
// interceptor chains without touching the target implementation.
//
// The Kernel object has comprehensive documentation about how resolution,
// scoping and interception work.
//
// There are also generic helper functions (Bind, Get, GetAll, Invoke) that
// make using this more concise.
package weave
