// Package archive keeps a copy of every accepted import file.
//
// Files are stored zstd-compressed under a content-addressed key derived
// from the BLAKE3 hash of the original bytes, so re-importing the same file
// never stores it twice. Archiving is best effort: the import pipeline logs
// archive failures and carries on.
package archive

import (
	"context"
	"encoding/hex"
	"fmt"
	"path"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"
)

// Object is one raw import file.
type Object struct {
	BatchID     string
	FileName    string
	ContentType string
	Data        []byte
}

// Archiver stores raw import files and returns the key they were stored
// under.
type Archiver interface {
	Archive(ctx context.Context, obj Object) (string, error)
}

// Noop discards everything. It is used when no bucket is configured.
type Noop struct{}

func (Noop) Archive(context.Context, Object) (string, error) { return "", nil }

// ContentHash returns the hex BLAKE3-256 digest of data.
func ContentHash(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Key builds the object key for data: prefix/ab/abcdef.../name.zst. The two
// character fan-out directory keeps listings small.
func Key(prefix string, data []byte, fileName string) string {
	hash := ContentHash(data)
	name := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "upload"
	}
	return path.Join(strings.Trim(prefix, "/"), hash[:2], hash, name+".zst")
}

// zstd encoders and decoders are safe for concurrent use.
var (
	encoder *zstd.Encoder
	decoder *zstd.Decoder
)

func init() {
	var err error
	encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("archive: zstd encoder initialization failed: " + err.Error())
	}
	decoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("archive: zstd decoder initialization failed: " + err.Error())
	}
}

// Compress returns the zstd frame for data.
func Compress(data []byte) []byte {
	return encoder.EncodeAll(data, make([]byte, 0, len(data)/2))
}

// Decompress reverses Compress.
func Decompress(data []byte) ([]byte, error) {
	out, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return out, nil
}
