package etl

// source.go turns a raw export file into header-keyed rows.
//
// The district exports are ';'-separated and written in a legacy single-byte
// encoding. Bytes go through three stages before the CSV reader sees them:
//
//   - bomSkippingReader drops a leading UTF-8 BOM
//   - the charmap decoder (or the UTF-8 sanitizer) produces valid UTF-8
//   - csv.Reader splits records on ';'

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Delimiter is the field separator of both sources.
const Delimiter = ';'

// decodeSource wraps r so that it yields UTF-8 regardless of the source
// encoding.
func decodeSource(r io.Reader, encoding string) (io.Reader, error) {
	r = newBOMSkippingReader(r)

	switch strings.ToLower(encoding) {
	case "latin-1", "latin1", "iso-8859-1", "":
		return charmap.ISO8859_1.NewDecoder().Reader(r), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(r), nil
	case "utf-8", "utf8":
		return newUTF8Sanitizer(r), nil
	default:
		return nil, fmt.Errorf("unsupported source encoding %q", encoding)
	}
}

// row is one source record keyed by trimmed header name.
type row map[string]string

// get returns the trimmed value for key, empty when the column is absent or
// the record is short.
func (r row) get(key string) string {
	return strings.TrimSpace(r[key])
}

// scanRows reads a header line then calls fn for each record. Missing
// required headers are fatal: every row would otherwise be skipped silently.
func scanRows(r io.Reader, encoding string, required []string, fn func(row) error) error {
	decoded, err := decodeSource(r, encoding)
	if err != nil {
		return err
	}

	cr := csv.NewReader(bufio.NewReader(decoded))
	cr.Comma = Delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("source is empty")
	}
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}

	keys := make([]string, len(header))
	present := make(map[string]bool, len(header))
	for i, h := range header {
		keys[i] = strings.TrimSpace(h)
		present[keys[i]] = true
	}
	var missing []string
	for _, h := range required {
		if !present[h] {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read record: %w", err)
		}

		rec := make(row, len(keys))
		for i, k := range keys {
			if i < len(record) {
				rec[k] = record[i]
			}
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}

// ============================================================================
// Readers
// ============================================================================

// bomSkippingReader drops the UTF-8 BOM (0xEF 0xBB 0xBF) if the stream
// starts with it.
type bomSkippingReader struct {
	br      *bufio.Reader
	checked bool
}

func newBOMSkippingReader(r io.Reader) *bomSkippingReader {
	return &bomSkippingReader{br: bufio.NewReader(r)}
}

func (r *bomSkippingReader) Read(p []byte) (int, error) {
	if !r.checked {
		r.checked = true
		if head, err := r.br.Peek(3); err == nil && head[0] == 0xEF && head[1] == 0xBB && head[2] == 0xBF {
			r.br.Discard(3)
		}
	}
	return r.br.Read(p)
}

// utf8Sanitizer replaces invalid UTF-8 bytes with '?' so a mislabelled
// latin-1 file declared as utf-8 still loads.
type utf8Sanitizer struct {
	reader  io.Reader
	pending []byte
}

func newUTF8Sanitizer(r io.Reader) *utf8Sanitizer {
	return &utf8Sanitizer{reader: r, pending: make([]byte, 0, utf8.UTFMax)}
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	if len(p) < utf8.UTFMax {
		return 0, io.ErrShortBuffer
	}

	offset := copy(p, s.pending)
	s.pending = s.pending[:0]

	n, err := s.reader.Read(p[offset:])
	n += offset
	if n == 0 {
		return 0, err
	}

	data := p[:n]
	write := 0
	for read := 0; read < len(data); {
		c := data[read]
		if c < utf8.RuneSelf {
			data[write] = c
			write++
			read++
			continue
		}

		// Hold back a sequence cut by the buffer boundary.
		if err == nil && !utf8.FullRune(data[read:]) {
			s.pending = append(s.pending, data[read:]...)
			break
		}

		r, size := utf8.DecodeRune(data[read:])
		if r == utf8.RuneError && size == 1 {
			data[write] = '?'
			write++
			read++
			continue
		}
		copy(data[write:], data[read:read+size])
		write += size
		read += size
	}

	return write, err
}
