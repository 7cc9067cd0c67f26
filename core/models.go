package core

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// Fingerprint returns a deterministic 64-bit digest of text using BLAKE2b.
// Identical text always yields the same value.
func Fingerprint(text string) uint64 {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return binary.LittleEndian.Uint64(sum)
}

// Chunk is one trimmed window of a document's body text.
type Chunk struct {
	Text    string
	Segment int // Index of the body segment the window came from
	Ordinal int // Position among all kept chunks of the document
}

// ChunkMetadata is attached to every chunk and stored alongside it in the index.
type ChunkMetadata struct {
	Source     string  `json:"source"`
	ChunkIndex int     `json:"chunk_index"`
	Title      *string `json:"title"`
	ChunkSize  int     `json:"chunk_size"`
}

// AssignedChunk is a chunk with its identifier and metadata, ready to embed.
type AssignedChunk struct {
	ID       string
	Text     string
	Metadata ChunkMetadata
}

// ChunkRecord is one line of the staging log.
type ChunkRecord struct {
	ProcessedAt Timestamp     `json:"processed_at"`
	ID          string        `json:"id"`
	Chunk       string        `json:"chunk"`
	Metadata    ChunkMetadata `json:"metadata"`
	Embeddings  []float32     `json:"embeddings"`
}

// IndexEntry is what the similarity index stores per id.
type IndexEntry struct {
	ID        string
	Document  string
	Metadata  ChunkMetadata
	Embedding []float32
}

// Match is one ranked query hit. Similarity carries whatever score the index
// reports; for distance based indexes smaller means closer.
type Match struct {
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`
}

// AnswerResult holds the ranked matches for one query.
type AnswerResult struct {
	Query       string    `json:"query"`
	ProcessedAt Timestamp `json:"processed_at"`
	Results     []Match   `json:"results"`
}

// Snapshot is the full content of an index collection.
type Snapshot struct {
	IDs       []string
	Documents []string
	Metadatas []ChunkMetadata
}

// Len returns the number of entries in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.IDs)
}

// Timestamp is an instant serialised as ISO-8601. Values without a zone
// offset are read as UTC.
type Timestamp struct {
	time.Time
}

// zonelessLayout matches timestamps written without an offset.
const zonelessLayout = "2006-01-02T15:04:05.999999999"

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// MarshalJSON implements json.Marshaler.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(ts.Time.Format(time.RFC3339Nano))
}

// UnmarshalJSON implements json.Unmarshaler.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	t, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	ts.Time = t
	return nil
}

// ParseTimestamp parses an ISO-8601 timestamp with or without an offset.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(zonelessLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q: %w", s, err)
	}
	return t, nil
}

// Checkpoint records how far a consumer has read the staging log.
type Checkpoint struct {
	Name      string    `json:"name"`
	Log       string    `json:"log,omitempty"` // Location of the log Offset counts into
	Offset    int       `json:"offset"`
	UpdatedAt time.Time `json:"updated_at"`
}
