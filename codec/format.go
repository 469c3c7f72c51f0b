/*
	Compression for package containers.

	Two container formats are supported, and callers must use the same one
	to compress and to decompress a given package:

	  - FormatLzma: the classic ".lzma" stream.  Its plain 13-byte header holds
	    the coder properties, the dictionary size, and the uncompressed length.
	  - FormatXz: the ".xz" container.  LZMA2 blocks framed with stream and
	    block headers, an index, and a CRC64 per block.

	The engine is reached only through an Adapter binding an io.Reader and an
	io.Writer, so nothing in here cares what kind of stream is on either end.
*/
package codec

import (
	"bytes"
	"fmt"
	"strings"

	. "github.com/warpfork/go-errcat"

	"github.com/polydawn/bpkg/api"
)

type Format byte

const (
	FormatAuto Format = iota // Decompress only: sniff the xz magic, else assume lzma.
	FormatLzma
	FormatXz
)

var xzMagic = []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}

func (f Format) String() string {
	switch f {
	case FormatAuto:
		return "auto"
	case FormatLzma:
		return "lzma"
	case FormatXz:
		return "xz"
	default:
		return fmt.Sprintf("Format(%d)", byte(f))
	}
}

// Ext is the conventional filename extension for a bare stream of this format.
func (f Format) Ext() string {
	switch f {
	case FormatXz:
		return ".xz"
	default:
		return ".lzma"
	}
}

// Valid returns a nil err iff this Format names a concrete container format.
func (f Format) Valid() error {
	switch f {
	case FormatLzma, FormatXz:
		return nil
	}
	return Errorf(api.ErrUsage, "unknown compression format %s", f)
}

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "auto", "":
		return FormatAuto, nil
	case "lzma":
		return FormatLzma, nil
	case "xz":
		return FormatXz, nil
	default:
		return FormatAuto, Errorf(api.ErrUsage, "unknown compression format %q (valid options are 'lzma' or 'xz')", s)
	}
}

// Detect inspects the first bytes of a stream.
// Only xz carries a magic number; the lzma header is all parameters,
// so ok is false for anything that isn't xz.
func Detect(header []byte) (f Format, ok bool) {
	if bytes.HasPrefix(header, xzMagic) {
		return FormatXz, true
	}
	return FormatLzma, false
}
