package convert

import "errors"

// ErrChannelLayout is returned when a stream carries a channel count
// the target container cannot represent.
var ErrChannelLayout = errors.New("unsupported channel layout")
