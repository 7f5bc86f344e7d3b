// Package config defines the compiled Configuration: the single, immutable
// value that every stage after the compiler reads from.
//
// A Configuration holds the resolved time structure, every entity with its
// parameters normalized to base units, and a provenance index that records,
// for each magnitude, its citations, the unit it was written in and the exact
// factor used to convert it. It is built once with New and never mutated;
// accessors hand out copies. The YAML encoding is canonical, so two
// compilations of the same entity set produce byte-identical artifacts and
// the same fingerprint.
package config
