package badger

import (
	"encoding/binary"
	"fmt"
)

// Key prefixes for different data types
const (
	stagingRecordPrefix = "stgrec:"
	stagingSeq          = "stgseq"
	collectionPrefix    = "idxcol:"
	entryPrefix         = "idxent:"
	checkpointPrefix    = "chkpt:"
)

// makeStagingKey generates the key for the staging record at seq.
// Format: prefix + big endian seq, so iteration follows append order.
func makeStagingKey(seq uint64) []byte {
	buf := make([]byte, len(stagingRecordPrefix)+8)
	offset := copy(buf, stagingRecordPrefix)
	binary.BigEndian.PutUint64(buf[offset:], seq)
	return buf
}

// makeCollectionKey generates the key holding a collection's metadata.
func makeCollectionKey(name string) []byte {
	return []byte(collectionPrefix + name)
}

// makeEntryPrefix generates the prefix shared by every entry of a collection.
// Collection names never contain ':' so prefixes of different collections
// cannot overlap.
func makeEntryPrefix(collection string) []byte {
	return []byte(fmt.Sprintf("%s%s:", entryPrefix, collection))
}

// makeEntryKey generates the key for an entry of a collection.
func makeEntryKey(collection, id string) []byte {
	return append(makeEntryPrefix(collection), id...)
}

// makeCheckpointKey generates a key for a named checkpoint.
func makeCheckpointKey(name string) []byte {
	return []byte(checkpointPrefix + name)
}
