// Package script compiles and evaluates the engine's script programs.
//
// Scripts are CUE documents, compiled and evaluated with the CUE SDK's Go
// API (never the cue CLI). A compiled Program can be evaluated any number
// of times; each evaluation fills bound variables first and then requires
// the whole document to be concrete.
//
// Reserved top-level fields give a script its effects:
//
//	output: "hello"                  // or bytes, or a list of strings/bytes
//	store:  {greeting: "hello"}      // records written to the session
//	delete: ["stale"]                // keys removed from the session
//
// Every other top-level field is a variable the host may extract after
// evaluation:
//
//	total: 40 + 2
//	ok:    total > 10
package script
