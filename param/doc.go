// Package param resolves command parameters from ordered source locators.
//
// A parameter declares locators of the form "kind:key", tried in order:
//
//	params:
//	  - name: user
//	    sources: ["get:user", "post:user", "session:user"]
//	    default: guest
//
// The first source holding the key wins, even when its value is empty.
// When none does, the declared default is used.
//
// Sources are bound per dispatch with WithSources. The built-in kinds are
// get, post, cookie, header and server (see FromRequest), session (see
// SessionStore), context (values produced by earlier commands), env, arg
// (see ArgsSource) and claim (see Verifier).
package param
