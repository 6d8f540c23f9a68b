package sens

import "github.com/pkg/errors"

var (
	// ErrUnsupportedVersion is returned when the container version is not Version.
	ErrUnsupportedVersion = errors.New("unsupported sensor data version")
	// ErrTruncatedStream is returned when the stream ends before a field is complete.
	ErrTruncatedStream = errors.New("truncated sensor data stream")
	// ErrUnknownCodec is returned for a compression code outside the codec tables.
	ErrUnknownCodec = errors.New("unknown compression codec")
	// ErrUnsupportedCodec is returned for a known codec that has no decoder.
	ErrUnsupportedCodec = errors.New("unsupported compression codec")
	// ErrSizeMismatch is returned when a decoded payload disagrees with the declared dimensions.
	ErrSizeMismatch = errors.New("decoded size does not match declared dimensions")
)
