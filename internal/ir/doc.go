// Package ir defines the term and rule model shared by every stratalog package.
//
// All other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Term is a sealed variant: Variable, Constant or Constructed
//   - Constant payloads are one sealed Value variant (String, Int, Float, Double, Bool, IRI)
//   - Tuples, atoms and rules are values; treat them as immutable once built
//   - Tuple identity is by canonical encoding, never by reference
//   - Canonical JSON never contains floats; Float and Double are encoded as tagged strings
package ir
