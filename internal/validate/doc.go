// Package validate checks a loaded entity set as a whole: identifiers are
// unique, references resolve, units are known, parameter names mean the
// same dimension everywhere, and global policies are unambiguous.
//
// Run collects every violation in one pass. Its result, a *Set, is the only
// input the config compiler accepts, so an unvalidated entity set cannot
// reach compilation.
package validate
