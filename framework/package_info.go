// Package framework contains the low-level pieces shared by every part of the suite harness.
// The base package holds the Logger types; the engine itself lives in the subpackages.
//
// The general model is:
//
// 1. Tests and groups are declared in code (or built from plan files) and added to suites.
// Suites are added to a runner.
//
// 2. A refiner, configured from filters such as test titles, tags and group titles, decides
// which of the declared tests are eligible to run.
//
// 3. The runner walks each suite, runs the eligible tests inside scopes that own setup and
// teardown hooks, and publishes lifecycle events through an emitter. Reporters subscribe to
// the emitter; the runner never calls them directly.
//
// The emitter is in the subpackage emitter; everything else is in the subpackage ldtest.
package framework
