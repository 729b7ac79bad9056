// Package ldtest declares, selects and runs tests.
//
// Tests are declared in a tree: a Suite holds tests and groups, and a Group holds tests. Each
// of them has its own setup and teardown hooks. A Refiner decides which tests are eligible
// under the active filters, a SuiteRunner walks one suite's tree and runs the eligible tests
// with their hooks, and a Runner runs a list of suites and keeps the counts. Progress is
// published as events on an emitter.Emitter, which is how reporters learn about it.
//
// Test code receives a *T, which is similar to Go's testing.T and can be used with testify's
// assert and require packages.
package ldtest
