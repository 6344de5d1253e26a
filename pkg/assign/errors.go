package assign

import "errors"

// ErrAssignmentFailed is returned when static-mode assignment cannot
// place every treelet on some worker in a single round.
var ErrAssignmentFailed = errors.New("assign: could not place all treelets")
