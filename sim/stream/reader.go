package stream

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
)

// DefaultCacheSize is how many batches the reader holds at a time. Larger
// values trade memory for fewer refills.
const DefaultCacheSize = 10

// Reader streams override batches in document order through a bounded cache.
// The cache refills lazily from the underlying token stream only when it
// empties and the source still has data, so Peek and Next block on I/O only at
// refill boundaries.
type Reader struct {
	dec       *xml.Decoder
	closer    io.Closer
	cache     []*Batch
	cacheSize int
	srcDone   bool
	err       error
}

// NewReader opens the override document at path.
func NewReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open override document: %w", err)
	}
	r := NewReaderFrom(f, DefaultCacheSize)
	r.closer = f
	return r, nil
}

// NewReaderFrom streams batches from r with the given cache capacity.
// A non-positive cacheSize falls back to DefaultCacheSize.
func NewReaderFrom(r io.Reader, cacheSize int) *Reader {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	return &Reader{dec: xml.NewDecoder(r), cacheSize: cacheSize}
}

// HasNext reports whether either the cache or the underlying source still has
// batches.
func (r *Reader) HasNext() bool {
	return len(r.cache) > 0 || !r.srcDone
}

// Peek returns the next batch without consuming it, refilling the cache if
// needed. Returns nil when no batches remain.
func (r *Reader) Peek() *Batch {
	r.checkCache()
	if len(r.cache) == 0 {
		return nil
	}
	return r.cache[0]
}

// Next returns and consumes the next batch, refilling the cache if needed.
// Returns nil when no batches remain.
func (r *Reader) Next() *Batch {
	r.checkCache()
	if len(r.cache) == 0 {
		return nil
	}
	head := r.cache[0]
	r.cache = r.cache[1:]
	return head
}

// Err returns the first error the reader hit, if any. A malformed batch or an
// I/O failure stops consumption of the source; batches already cached are
// still served.
func (r *Reader) Err() error {
	return r.err
}

// Close releases the underlying file, if the reader owns one.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// checkCache refills the cache when it is empty and the source has more data.
func (r *Reader) checkCache() {
	if len(r.cache) > 0 || r.srcDone {
		return
	}
	r.fill()
}

// fill pulls batches from the token stream until the cache is full or the
// source is exhausted. The first malformed batch or I/O error is recorded,
// reported, and ends consumption.
func (r *Reader) fill() {
	for !r.srcDone && len(r.cache) < r.cacheSize {
		batch, err := r.nextBatch()
		if err == io.EOF {
			r.srcDone = true
			return
		}
		if err != nil {
			r.err = err
			r.srcDone = true
			logrus.Errorf("override stream: %v", err)
			return
		}
		r.cache = append(r.cache, batch)
	}
}

// nextBatch scans forward to the next timestep element and reads it.
func (r *Reader) nextBatch() (*Batch, error) {
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return nil, err
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "timestep" {
			continue
		}
		return r.readBatch(se)
	}
}

// readBatch parses one timestep element and its entity overrides.
func (r *Reader) readBatch(se xml.StartElement) (*Batch, error) {
	batch := &Batch{Step: -1}
	for _, attr := range se.Attr {
		if attr.Name.Local == "stepValue" {
			step, err := strconv.Atoi(attr.Value)
			if err != nil {
				return nil, fmt.Errorf("%w: bad stepValue %q", ErrBadStream, attr.Value)
			}
			batch.Step = step
		}
	}
	if batch.Step < 0 {
		return nil, fmt.Errorf("%w: timestep is missing stepValue", ErrBadStream)
	}

	for {
		tok, err := r.dec.Token()
		if err == io.EOF {
			return nil, fmt.Errorf("%w: timestep %d is not closed", ErrBadStream, batch.Step)
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			o, err := parseOverride(t)
			if err != nil {
				return nil, fmt.Errorf("timestep %d: %w", batch.Step, err)
			}
			batch.Overrides = append(batch.Overrides, o)
			if err := r.dec.Skip(); err != nil {
				return nil, fmt.Errorf("%w: timestep %d: %v", ErrBadStream, batch.Step, err)
			}
		case xml.EndElement:
			if t.Name.Local == "timestep" {
				return batch, nil
			}
		}
	}
}

// parseOverride reads one entity-override element. The id, name and type
// attributes are all required; value defaults to zero.
func parseOverride(se xml.StartElement) (Override, error) {
	var o Override
	var haveMode bool
	for _, attr := range se.Attr {
		switch attr.Name.Local {
		case "id":
			o.ID = attr.Value
		case "name":
			o.Name = attr.Value
		case "type":
			mode, err := ParseMode(attr.Value)
			if err != nil {
				return Override{}, err
			}
			o.Mode = mode
			haveMode = true
		case "value":
			v, err := strconv.ParseFloat(attr.Value, 64)
			if err != nil {
				return Override{}, fmt.Errorf("%w: bad value %q", ErrBadStream, attr.Value)
			}
			o.Value = v
		}
		// Unknown attributes are ignored.
	}
	if o.ID == "" || o.Name == "" || !haveMode {
		return Override{}, fmt.Errorf("%w: override element needs id, name and type", ErrBadStream)
	}
	return o, nil
}
