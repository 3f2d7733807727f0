package willowmap

import (
	"errors"
	"fmt"
)

// ErrOverlayUnavailable is returned when a marker render is attempted before
// an overlay is bound to a map.
var ErrOverlayUnavailable = errors.New("willowmap: overlay unavailable")

// AssetLoadFailedError reports an icon that could not be fetched or decoded.
type AssetLoadFailedError struct {
	Color string
	URL   string
	Err   error
}

func (e *AssetLoadFailedError) Error() string {
	return fmt.Sprintf("willowmap: load %s icon from %s: %v", e.Color, e.URL, e.Err)
}

func (e *AssetLoadFailedError) Unwrap() error {
	return e.Err
}

// UnknownIconColorError reports a color key with no loaded icon.
type UnknownIconColorError struct {
	Color string
}

func (e *UnknownIconColorError) Error() string {
	return fmt.Sprintf("willowmap: no icon loaded for color %q", e.Color)
}
