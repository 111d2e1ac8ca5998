// Package commands provides the built-in command types. Importing it
// registers them in chain.DefaultRegistry:
//
//	echo      write the text parameter to the output
//	set       store the value parameter, optionally under an extra key
//	redirect  redirect the client to the to parameter, then stop silently
//	forward   forward to the request named by the to parameter
//	abort     stop the chain and log the reason parameter
//	fail      report the reason parameter as a recoverable failure
//	session   get, set or delete a session value
//	env       expose selected environment variables
//	dump      write the context as JSON
//
// Each factory decodes its options with unknown keys rejected.
package commands
