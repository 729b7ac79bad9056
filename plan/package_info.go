// Package plan reads plan files, which declare suites of tests that run external commands.
//
// A plan file is YAML or JSON. It can declare constants and parameters; a placeholder such as
// <NAME> anywhere in the file is replaced by the value of the constant or parameter NAME, and
// a file with parameters yields one plan for each parameter set. A list of lists of parameter
// sets yields every combination of one set from each list.
package plan
