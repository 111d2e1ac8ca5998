// Package chain provides the command-chain primitives of the dispatcher.
//
// It defines the execution Context shared by the commands of one request,
// the Command capability, the Request and Descriptor shapes produced by the
// configuration layer, and the control-flow Signal taxonomy:
//
//   - Continue: the command completed normally.
//   - Recoverable: the command failed locally; the chain goes on.
//   - FatalAbort: the request cannot continue; the cause is logged.
//   - SilentAbort: the command already responded (e.g. a redirect).
//   - Forward: the chain stops and another request takes over.
//
// Commands raise signals by returning the errors built by Abort, SilentAbort
// and Forward. Any other error is Recoverable. The Executor turns the outcome
// of one command into a Signal that the dispatcher matches exhaustively.
package chain
