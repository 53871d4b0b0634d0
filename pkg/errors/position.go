package errors

import "wisp/pkg/source"

// Position is a 1-based line/column plus 0-based byte span, matching the
// span every emitted instruction and diagnostic carries.
type Position struct {
	Line     int
	Column   int
	StartPos int
	EndPos   int
	Source   *source.File
}
