// Package validation implements declarative field validation.
//
// A rule spec is a pipe-delimited list of rule tokens, each a rule name with
// an optional colon-separated, comma-delimited parameter list:
//
//	"required|min:3|max:20"
//	"exists:users,email"
//
// The Engine parses every spec, dispatches each token to a Registry entry
// and collects failures into Errors keyed by field and rule name. A failing
// required rule stops evaluation of that field; every other failure lets
// the remaining rules run.
//
// Rules that need the outside world do not reach for it themselves. The
// unique and exists rules call an injected LookupFunc, and the file rules
// read an injected FileAccessor. Without those capabilities the engine is a
// pure function of its inputs.
package validation
