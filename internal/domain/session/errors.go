package session

import "errors"

// ErrNotDrawing is returned by Move and End outside of the Drawing state.
var ErrNotDrawing = errors.New("session is not drawing")
