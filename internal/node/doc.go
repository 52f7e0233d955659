// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package node defines the compiled form of a template: a tree of immutable
// directive nodes produced once by the compiler and evaluated many times by
// the renderer.
//
// # Core Concepts
//
//   - Node: one compiled directive. The concrete kinds are Attribute, Code,
//     Condition and Child. A Child with Glue set is the glue variant.
//
//   - DataRef: where an object comes from. Instance references are looked up
//     in the render scope, method references are invoked on the current
//     object, expression references are evaluated.
//
//   - Name: an output key that may be unset, explicitly disabled (`false` in
//     the DSL) or set.
//
//   - Env: the per-object evaluation environment handed to compiled blocks
//     and predicates.
//
// Why a separate node package?
//
// The compiler and the renderer never talk to each other directly. The node
// tree is the only contract between them, so it lives on its own and depends
// on nothing but the scope interface.
package node
