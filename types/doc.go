// Package types implements the verifier's type lattice.
//
// A Type is a builtin (the fixed primitive and reference-category types), a
// class, or a compound. Intersections hold two or more atoms that must all be
// satisfied; unions hold two or more atoms or intersections joined from
// different control-flow paths. Compounds never nest further and never hold
// Top or Bot.
//
// Compounds are interned by a TypeSystem, so Type values compare with ==.
// The builtin supertype closure and least-upper-bound table are computed once
// at init and shared by every TypeSystem.
package types
