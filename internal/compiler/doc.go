// Package compiler turns a validated entity set into the immutable
// Configuration: every magnitude is converted to the base unit of its
// dimension, the time structure is resolved, series are checked against it,
// link commodities are resolved, and each conversion is recorded in the
// provenance index.
package compiler
