// Package track associates per-frame candidate boxes with live figures and
// advances each figure's ENTER -> IN_TRANSIT -> EXIT lifecycle.
//
// Association is delegated to a Matcher. GreedyMatcher reproduces the
// first-match-within-radius behaviour; HungarianMatcher solves the optimal
// assignment on midpoint distances. Either way a figure is matched by at most
// one box per frame, and boxes never match figures created in the same frame.
package track
