// Package patch parses unified-diff hunks and applies them to a single text
// document.
//
// The engine is pure: Parse turns patch text into an ordered list of typed
// operations and Apply walks the original document with one forward cursor,
// validating context and removal lines as it goes. Nothing is returned unless
// every operation matched, so callers can write the result without worrying
// about partially applied patches. ApplyFile and ApplyToMemory wrap the engine
// for callers that keep documents on disk or in a map.
package patch
