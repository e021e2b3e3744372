// Package compare builds side-by-side comparison tables from sets of named
// configuration parameter maps and flags the rows whose values disagree.
//
// Values are heterogeneous: strings, numbers, booleans, or nested parameter
// maps. Nested maps are shown as a sentinel in the top-level table and are
// compared by drilling down into a secondary table scoped to one key. Row
// difference detection works on canonical string forms through a pluggable
// equality predicate; the default is exact string equality.
package compare
