package stream

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoBatchDoc = `
<input>
  <timestep stepValue="2">
    <entity id="1.1" name="tank" type="valueset" value="50"/>
    <entity id="2.1" name="valve" type="valueadd" value="-3.5"/>
  </timestep>
  <timestep stepValue="7">
    <entity id="1.1" name="tank" type="VALUESCALE" value="0.5"/>
  </timestep>
</input>`

func TestReader_ReadsBatchesInDocumentOrder(t *testing.T) {
	// GIVEN a document with two timestep batches
	r := NewReaderFrom(strings.NewReader(twoBatchDoc), DefaultCacheSize)

	// WHEN both batches are consumed
	require.True(t, r.HasNext())
	first := r.Next()
	require.NotNil(t, first)

	// THEN the first batch carries its step index and both overrides
	assert.Equal(t, 2, first.Step)
	require.Len(t, first.Overrides, 2)
	assert.Equal(t, Override{ID: "1.1", Name: "tank", Mode: ModeSet, Value: 50}, first.Overrides[0])
	assert.Equal(t, Override{ID: "2.1", Name: "valve", Mode: ModeAdd, Value: -3.5}, first.Overrides[1])

	// AND the second follows, with its type attribute parsed case-insensitively
	second := r.Next()
	require.NotNil(t, second)
	assert.Equal(t, 7, second.Step)
	require.Len(t, second.Overrides, 1)
	assert.Equal(t, ModeScale, second.Overrides[0].Mode)

	// AND the stream then reports exhaustion
	assert.Nil(t, r.Next())
	assert.False(t, r.HasNext())
	assert.NoError(t, r.Err())
}

func TestReader_Peek_DoesNotConsume(t *testing.T) {
	r := NewReaderFrom(strings.NewReader(twoBatchDoc), DefaultCacheSize)

	peeked := r.Peek()
	require.NotNil(t, peeked)
	assert.Equal(t, 2, peeked.Step)

	// Peek is idempotent; Next returns the same batch.
	assert.Same(t, peeked, r.Peek())
	assert.Same(t, peeked, r.Next())
	assert.Equal(t, 7, r.Peek().Step)
}

func TestReader_CacheRefillsLazily(t *testing.T) {
	// GIVEN many batches behind a cache that only holds two at a time
	var doc strings.Builder
	doc.WriteString("<input>")
	for i := 0; i < 25; i++ {
		fmt.Fprintf(&doc, `<timestep stepValue="%d"><entity id="1" name="tank" type="valueset" value="%d"/></timestep>`, i, i)
	}
	doc.WriteString("</input>")
	r := NewReaderFrom(strings.NewReader(doc.String()), 2)

	// WHEN everything is drained through the cache
	var steps []int
	for r.HasNext() {
		b := r.Next()
		if b == nil {
			break
		}
		steps = append(steps, b.Step)
	}

	// THEN every batch came through once, in order, despite the refills
	require.Len(t, steps, 25)
	for i, step := range steps {
		assert.Equal(t, i, step)
	}
	assert.NoError(t, r.Err())
}

func TestReader_EmptyDocument(t *testing.T) {
	r := NewReaderFrom(strings.NewReader("<input></input>"), DefaultCacheSize)
	assert.Nil(t, r.Peek())
	assert.Nil(t, r.Next())
	assert.False(t, r.HasNext())
	assert.NoError(t, r.Err())
}

func TestReader_MalformedBatch_StopsSourceButServesEarlierBatches(t *testing.T) {
	// GIVEN a good batch followed by a batch whose override lacks a name
	doc := `
<input>
  <timestep stepValue="1">
    <entity id="1" name="tank" type="valueset" value="5"/>
  </timestep>
  <timestep stepValue="2">
    <entity id="1" type="valueset" value="9"/>
  </timestep>
  <timestep stepValue="3">
    <entity id="1" name="tank" type="valueset" value="7"/>
  </timestep>
</input>`
	r := NewReaderFrom(strings.NewReader(doc), DefaultCacheSize)

	// WHEN the stream is drained
	first := r.Next()

	// THEN the batch before the defect is served and the rest is dropped
	require.NotNil(t, first)
	assert.Equal(t, 1, first.Step)
	assert.Nil(t, r.Next())
	assert.False(t, r.HasNext())
	assert.True(t, errors.Is(r.Err(), ErrBadStream), "got %v, want ErrBadStream", r.Err())
}

func TestReader_FailureCases(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{
			name: "missing stepValue",
			doc:  `<input><timestep><entity id="1" name="t" type="valueset" value="1"/></timestep></input>`,
		},
		{
			name: "non-numeric stepValue",
			doc:  `<input><timestep stepValue="soon"/></input>`,
		},
		{
			name: "unknown override type",
			doc:  `<input><timestep stepValue="1"><entity id="1" name="t" type="valuesquare" value="1"/></timestep></input>`,
		},
		{
			name: "non-numeric value",
			doc:  `<input><timestep stepValue="1"><entity id="1" name="t" type="valueset" value="lots"/></timestep></input>`,
		},
		{
			name: "unclosed timestep",
			doc:  `<input><timestep stepValue="1">`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewReaderFrom(strings.NewReader(tc.doc), DefaultCacheSize)
			assert.Nil(t, r.Next())
			require.Error(t, r.Err())
			assert.False(t, r.HasNext())
		})
	}
}

func TestParseMode(t *testing.T) {
	for input, want := range map[string]Mode{
		"valueset":   ModeSet,
		"valueadd":   ModeAdd,
		"valuescale": ModeScale,
		"ValueSet":   ModeSet,
		"VALUEADD":   ModeAdd,
	} {
		got, err := ParseMode(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseMode("valuesquare")
	assert.True(t, errors.Is(err, ErrBadStream))
}

func TestMode_Apply(t *testing.T) {
	assert.Equal(t, 5.0, ModeSet.Apply(5, 100))
	assert.Equal(t, 105.0, ModeAdd.Apply(5, 100))
	assert.Equal(t, 500.0, ModeScale.Apply(5, 100))
}
