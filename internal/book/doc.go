// Package book implements order book reconstruction for binary-outcome
// markets.
//
// The package is a pure state-transition core: Apply folds one normalized
// wire event into a new book State without mutating the prior one, so every
// retained state stays independently inspectable. Both the live engine and
// historical replay route events through the same Apply, guaranteeing
// identical semantics in both modes.
//
// A price level on one side of a binary market's book doubles as residual
// capacity on the complementary outcome. Delta application therefore carries
// an opposite-side inference step: shrinking the opposite side below the
// requested size spills the remainder onto the requested side.
package book
