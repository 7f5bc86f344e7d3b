// Package assembler turns an extended graph into a solver-ready problem.
//
// Assemble declares one flow variable per flow and slice, a level per
// storage node and slice, and installed and new capacity per model year for
// every technology whose capacity is a decision. It then applies every core
// template to every element it accepts, every bound template to its element,
// and builds the discounted cost objective.
//
// Cost parameters are read by dimension:
//
//	currency/energy        variable cost on delivered energy
//	currency/power/time    recurring fixed cost on installed capacity
//	currency/power         one-off investment cost on new capacity
package assembler
