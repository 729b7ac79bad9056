// Package internal exists so that stacktrace tests in ldtest have a frame outside the ldtest package.
package internal

// Invoke calls action.
func Invoke(action func()) {
	action()
}
