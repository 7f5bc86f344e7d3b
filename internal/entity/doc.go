// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package entity defines the Entity record and reads it from HCL files.
//
// Why one file per entity?
//
// An entity is the unit of authorship: one technology, one commodity, one
// storage site, one policy. Parameters inside it are collected from
// heterogeneous literature, so every number travels with its unit and the
// citations that justify it. Keeping each entity in its own file lets several
// people curate data independently and lets the loader parse files in
// parallel, because no file depends on any other at parse time.
//
// Why are entities immutable?
//
// Everything downstream (validation, compilation, graph building) is derived
// from the parsed entities. If an entity could change after parsing, a
// compiled configuration would no longer be reproducible from its inputs.
// Entities therefore expose accessors that return copies, and a changed file
// produces a new Entity on the next run.
//
// A typical file:
//
//	entity "technology" "generator" {
//	  description = "Open-cycle gas turbine"
//	  sector      = "electricity"
//
//	  input "fuel_storage" {}
//	  output "electricity" {}
//
//	  parameter "output_capacity" {
//	    value   = 10
//	    unit    = "MW"
//	    sources = ["Operator data sheet 2023"]
//	  }
//	}
package entity
