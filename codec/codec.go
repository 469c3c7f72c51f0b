package codec

import (
	"io"

	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
	. "github.com/warpfork/go-errcat"
	xzdec "github.com/xi2/xz"

	"github.com/polydawn/bpkg/api"
)

// The one compression profile we use.
// Moderate literal context and position bits, and a dictionary sized to the
// input but never more than the 8MiB that a level 5 preset would choose.
var profile = lzma.Properties{LC: 3, LP: 0, PB: 2}

const (
	minDictCap = lzma.MinDictCap
	maxDictCap = 8 << 20
)

func dictCapFor(size int64) int {
	dc := minDictCap
	for int64(dc) < size && dc < maxDictCap {
		dc <<= 1
	}
	return dc
}

/*
	Adapter binds the codec engine to a source and a sink.

	Reads from In are pulls: a pull returning io.EOF ends the input, and a
	source which keeps returning zero bytes without an error is treated as
	stuck rather than waited on forever.
	Writes to Out are pushes: a push accepting fewer bytes than offered is a
	sink failure even if the sink neglected to say so.

	Failures on either side surface as api.ErrIO; failures inside the engine
	(bad headers, corrupt data, checksum mismatches) surface as api.ErrCodec.
*/
type Adapter struct {
	In  io.Reader
	Out io.Writer
}

// Compress streams all of In through the encoder into Out.
// In must also be an io.Seeker: the dictionary is sized from the total input
// length, which is probed up front, and lzma records that length in its header.
func (a Adapter) Compress(format Format) error {
	if err := format.Valid(); err != nil {
		return err
	}
	seeker, ok := a.In.(io.Seeker)
	if !ok {
		return Errorf(api.ErrUsage, "codec: compression input must support seeking to probe its length")
	}
	size, err := probeLength(seeker)
	if err != nil {
		return Errorf(api.ErrIO, "codec: failed to probe input length: %s", err)
	}

	pull := &puller{r: a.In}
	push := &pusher{w: a.Out}
	props := profile
	var enc io.WriteCloser
	switch format {
	case FormatLzma:
		enc, err = lzma.WriterConfig{
			Properties:   &props,
			DictCap:      dictCapFor(size),
			SizeInHeader: true,
			Size:         size,
		}.NewWriter(push)
	case FormatXz:
		enc, err = xz.WriterConfig{
			Properties: &props,
			DictCap:    dictCapFor(size),
			CheckSum:   xz.CRC64,
		}.NewWriter(push)
	}
	if err != nil {
		return classify(push, pull, "configure encoder", err)
	}
	if _, err := io.Copy(enc, pull); err != nil {
		enc.Close()
		return classify(push, pull, "compress", err)
	}
	if err := enc.Close(); err != nil {
		return classify(push, pull, "finish compression", err)
	}
	return nil
}

// Decompress streams all of In through the decoder into Out.
// FormatAuto peeks at the head of the stream to pick the decoder.
func (a Adapter) Decompress(format Format) error {
	pull := &puller{r: a.In}
	push := &pusher{w: a.Out}
	var src io.Reader = pull
	if format == FormatAuto {
		var err error
		format, src, err = sniff(pull)
		if err != nil {
			return classify(push, pull, "read header", err)
		}
	}
	if err := format.Valid(); err != nil {
		return err
	}

	var dec io.Reader
	var err error
	switch format {
	case FormatLzma:
		dec, err = lzma.NewReader(src)
	case FormatXz:
		dec, err = xzdec.NewReader(src, xzdec.DefaultDictMax)
	}
	if err != nil {
		return classify(push, pull, "read header", err)
	}
	if _, err := io.Copy(push, dec); err != nil {
		return classify(push, pull, "decompress", err)
	}
	return nil
}

// Compress is shorthand for an Adapter over in and out.
func Compress(format Format, in io.ReadSeeker, out io.Writer) error {
	return Adapter{In: in, Out: out}.Compress(format)
}

// Decompress is shorthand for an Adapter over in and out.
func Decompress(format Format, in io.Reader, out io.Writer) error {
	return Adapter{In: in, Out: out}.Decompress(format)
}

func probeLength(s io.Seeker) (int64, error) {
	end, err := s.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := s.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	return end, nil
}

func sniff(r io.Reader) (Format, io.Reader, error) {
	head := make([]byte, len(xzMagic))
	n, err := io.ReadFull(r, head)
	switch err {
	case nil, io.EOF, io.ErrUnexpectedEOF:
		// short streams are the decoder's problem to reject.
	default:
		return FormatAuto, nil, err
	}
	head = head[:n]
	format, _ := Detect(head)
	return format, io.MultiReader(bytesReader(head), r), nil
}

// classify picks the error category: if either end of the adapter failed,
// it's io; otherwise the engine itself objected.
func classify(push *pusher, pull *puller, stage string, err error) error {
	switch {
	case push.err != nil:
		return Errorf(api.ErrIO, "codec: %s: output failed: %s", stage, push.err)
	case pull.err != nil:
		return Errorf(api.ErrIO, "codec: %s: input failed: %s", stage, pull.err)
	default:
		return Errorf(api.ErrCodec, "codec: %s: %s", stage, err)
	}
}
