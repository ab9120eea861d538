package silverstore

import (
	"path"

	"github.com/google/uuid"
	"github.com/illmade-knight/gtfsrt-silver/pkg/gtfsrt"
)

// PathNamer builds silver object names of the form
// <prefix>/<kind>/dt=<partition>/part-<id>.parquet, where id is a name-based
// UUID of the kind and source. Reprocessing a source targets the same object.
type PathNamer struct {
	Prefix string
}

// Name returns the object name for the file flattened from source.
func (n PathNamer) Name(kind gtfsrt.FeedKind, partition, source string) string {
	file := "part-" + ObjectID(kind, source) + ".parquet"
	return path.Join(n.Prefix, string(kind), "dt="+partition, file)
}

// ObjectID is the stable identifier of the file flattened from source.
func ObjectID(kind gtfsrt.FeedKind, source string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(string(kind)+":"+source)).String()
}
