// Package volume reads the fixed volume header at the start of a NEXRAD
// Archive II file.
package volume

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
)

// HeaderSize is the length of the Archive II volume header record.
const HeaderSize = 24

var (
	// ErrBadMagic means the file does not start with an AR2V tape name.
	ErrBadMagic = errors.New("not an Archive II volume")

	// ErrShortHeader means the file ended inside the volume header.
	ErrShortHeader = errors.New("truncated volume header")
)

var (
	magic     = []byte("AR2V")
	gzipMagic = []byte{0x1f, 0x8b}
	epoch     = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
)

// Header is the decoded volume header.
//
//	bytes  0-8   tape name, "AR2V00xx."
//	bytes  9-11  extension number
//	bytes 12-15  modified Julian date, day 1 = 1970-01-01 (big endian)
//	bytes 16-19  milliseconds past midnight (big endian)
//	bytes 20-23  ICAO identifier
type Header struct {
	Version   string // e.g. "0006"
	Extension string
	Time      time.Time
	ICAO      string
}

// Parse decodes a raw header record.
func Parse(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, ErrShortHeader
	}
	if !bytes.Equal(b[:4], magic) || b[8] != '.' {
		return Header{}, fmt.Errorf("%w: starts with %q", ErrBadMagic, b[:min(len(b), 9)])
	}
	days := binary.BigEndian.Uint32(b[12:16])
	ms := binary.BigEndian.Uint32(b[16:20])
	if days == 0 {
		return Header{}, fmt.Errorf("%w: zero date", ErrBadMagic)
	}
	t := epoch.AddDate(0, 0, int(days)-1).Add(time.Duration(ms) * time.Millisecond)

	return Header{
		Version:   string(b[4:8]),
		Extension: string(b[9:12]),
		Time:      t,
		ICAO:      strings.TrimRight(string(b[20:24]), "\x00 "),
	}, nil
}

// Encode is the inverse of Parse.
func (h Header) Encode() []byte {
	b := make([]byte, HeaderSize)
	copy(b, "AR2V")
	copy(b[4:8], fmt.Sprintf("%-4s", h.Version))
	b[8] = '.'
	copy(b[9:12], fmt.Sprintf("%-3s", h.Extension))
	t := h.Time.UTC()
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	days := int(midnight.Sub(epoch).Hours()/24) + 1
	binary.BigEndian.PutUint32(b[12:16], uint32(days))
	binary.BigEndian.PutUint32(b[16:20], uint32(t.Sub(midnight).Milliseconds()))
	copy(b[20:24], fmt.Sprintf("%-4s", h.ICAO))
	return b
}

// Read decodes the header from r. Whole-file gzip compression, as used by
// the archive for older volumes, is detected and removed.
func Read(r io.Reader) (Header, error) {
	br := bufio.NewReader(r)
	peek, err := br.Peek(2)
	if err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrShortHeader, err)
	}

	var src io.Reader = br
	if bytes.Equal(peek, gzipMagic) {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return Header{}, fmt.Errorf("open gzip stream: %w", err)
		}
		defer zr.Close()
		src = zr
	}

	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(src, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Header{}, ErrShortHeader
		}
		return Header{}, fmt.Errorf("read header: %w", err)
	}
	return Parse(buf)
}

// ReadFile opens path and decodes its header.
func ReadFile(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, err
	}
	defer f.Close()
	return Read(f)
}
