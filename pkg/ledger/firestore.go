package ledger

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreConfig holds configuration for the Firestore ledger.
type FirestoreConfig struct {
	ProjectID      string
	CollectionName string
}

// firestoreEntry is the stored document. Keys contain slashes, which
// Firestore document IDs may not, so the key is kept as a field and the
// document ID is derived from it.
type firestoreEntry struct {
	Key   string `firestore:"key"`
	Entry Entry  `firestore:"entry"`
}

// Firestore keeps one document per key. Suited to low-volume deployments;
// use Redis for high volume.
type Firestore struct {
	client     *firestore.Client
	collection string
	logger     zerolog.Logger
}

// NewFirestore creates a ledger over an injected client, whose lifecycle is
// managed by the caller.
func NewFirestore(cfg *FirestoreConfig, client *firestore.Client, logger zerolog.Logger) (*Firestore, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client cannot be nil")
	}
	if cfg.CollectionName == "" {
		return nil, fmt.Errorf("firestore collection name is required")
	}
	logger.Info().Str("project_id", cfg.ProjectID).Str("collection", cfg.CollectionName).Msg("Firestore ledger initialized.")
	return &Firestore{
		client:     client,
		collection: cfg.CollectionName,
		logger:     logger.With().Str("component", "FirestoreLedger").Logger(),
	}, nil
}

// DocID maps a ledger key to its document ID.
func DocID(key string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

func (l *Firestore) Lookup(ctx context.Context, key string) (Entry, error) {
	snap, err := l.client.Collection(l.collection).Doc(DocID(key)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return Entry{}, ErrNotFound
		}
		return Entry{}, fmt.Errorf("firestore get for %s: %w", key, err)
	}
	var doc firestoreEntry
	if err := snap.DataTo(&doc); err != nil {
		return Entry{}, fmt.Errorf("firestore DataTo for %s: %w", key, err)
	}
	return doc.Entry, nil
}

func (l *Firestore) Record(ctx context.Context, key string, entry Entry) error {
	_, err := l.client.Collection(l.collection).Doc(DocID(key)).Set(ctx, firestoreEntry{Key: key, Entry: entry})
	if err != nil {
		return fmt.Errorf("firestore set for %s: %w", key, err)
	}
	l.logger.Debug().Str("key", key).Msg("Recorded ledger entry in Firestore.")
	return nil
}

// Close does not close the injected Firestore client.
func (l *Firestore) Close() error { return nil }
