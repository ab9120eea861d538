package gtfsrt

import (
	"errors"
	"fmt"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"
)

// ErrMalformedFeed is matched by every error returned for a byte buffer that
// cannot be interpreted as a GTFS-realtime FeedMessage.
var ErrMalformedFeed = errors.New("gtfsrt: malformed feed")

// MalformedFeedError describes why a payload was rejected. It matches
// ErrMalformedFeed under errors.Is and unwraps to the underlying protobuf error.
type MalformedFeedError struct {
	Size int
	Err  error
}

func (e *MalformedFeedError) Error() string {
	return fmt.Sprintf("gtfsrt: malformed feed (%d bytes): %v", e.Size, e.Err)
}

func (e *MalformedFeedError) Unwrap() error { return e.Err }

// Is reports whether target is ErrMalformedFeed.
func (e *MalformedFeedError) Is(target error) bool { return target == ErrMalformedFeed }

// DecodeFeed strictly parses b as a FeedMessage. Truncated framing, invalid
// wire types and missing required fields (including the header of an empty
// buffer) are all rejected with a *MalformedFeedError.
func DecodeFeed(b []byte) (*gtfs.FeedMessage, error) {
	feed := &gtfs.FeedMessage{}
	if err := proto.Unmarshal(b, feed); err != nil {
		return nil, &MalformedFeedError{Size: len(b), Err: err}
	}
	return feed, nil
}
