package ring_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/greenbox/pkg/ring"
)

// newRegion allocates a zero-initialized region for the given layout.
func newRegion(t *testing.T, blockSize, blockCount int) []byte {
	t.Helper()

	layout, err := ring.NewLayout(blockSize, blockCount)
	require.NoError(t, err)

	return make([]byte, layout.RegionSize())
}

func Test_NewWriter_Returns_ErrSizeMismatch_When_Region_Length_Wrong(t *testing.T) {
	t.Parallel()

	for _, size := range []int{0, 71, 73, 144} {
		_, err := ring.NewWriter(make([]byte, size), 16, 4)
		require.ErrorIs(t, err, ring.ErrSizeMismatch, "size=%d", size)
	}
}

func Test_NewWriter_Marks_Slot_Zero_Busy_When_Created(t *testing.T) {
	t.Parallel()

	buf := newRegion(t, 16, 4)

	w, err := ring.NewWriter(buf, 16, 4)
	require.NoError(t, err)

	assert.Equal(t, 0, w.Cursor())
	assert.Equal(t, byte('s'), buf[0], "slot 0 state")
	assert.Equal(t, byte(0x01), buf[1], "slot 0 pass")

	// Nothing else is touched.
	assert.True(t, bytes.Equal(buf[2:], make([]byte, len(buf)-2)))
}

func Test_Writer_Lays_Out_Slot_Bytes_When_Message_Written(t *testing.T) {
	t.Parallel()

	buf := newRegion(t, 8, 3)

	w, err := ring.NewWriter(buf, 8, 3)
	require.NoError(t, err)

	require.NoError(t, w.Write([]byte("hey")))

	want := []byte{
		// slot 0: released, pass toggled 0x01 -> 0x00, payload + terminator
		0x00, 0x00, 'h', 'e', 'y', '\n', 0, 0, 0, 0,
		// slot 1: announced
		's', 0x00, 0, 0, 0, 0, 0, 0, 0, 0,
		// slot 2: untouched
		0x00, 0x00, 0, 0, 0, 0, 0, 0, 0, 0,
	}

	if diff := cmp.Diff(want, buf); diff != "" {
		t.Fatalf("region mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, 1, w.Cursor())
}

func Test_Writer_Toggles_Pass_When_Slot_Rewritten(t *testing.T) {
	t.Parallel()

	buf := newRegion(t, 4, 2)
	layout, err := ring.NewLayout(4, 2)
	require.NoError(t, err)

	w, err := ring.NewWriter(buf, 4, 2)
	require.NoError(t, err)

	passes := []byte{buf[layout.SlotOffset(0)+1]}

	for range 4 {
		require.NoError(t, w.Write([]byte("x")))
		require.NoError(t, w.Write([]byte("y")))
		passes = append(passes, buf[layout.SlotOffset(0)+1])
	}

	assert.Equal(t, []byte{0x01, 0x00, 0x01, 0x00, 0x01}, passes)
}

func Test_Writer_Returns_ErrCapacity_And_Leaves_Region_Unchanged_When_Message_Too_Long(t *testing.T) {
	t.Parallel()

	buf := newRegion(t, 16, 4)

	w, err := ring.NewWriter(buf, 16, 4)
	require.NoError(t, err)

	require.NoError(t, w.Write([]byte("first")))

	before := bytes.Clone(buf)

	for _, msg := range []string{
		strings.Repeat("x", 16),
		strings.Repeat("x", 100),
		"has\nnewline",
		"\n",
	} {
		err := w.Write([]byte(msg))
		require.ErrorIs(t, err, ring.ErrCapacity, "msg=%q", msg)
	}

	if diff := cmp.Diff(before, buf); diff != "" {
		t.Fatalf("rejected write mutated region (-before +after):\n%s", diff)
	}

	assert.Equal(t, 1, w.Cursor(), "cursor must not advance on rejection")
}

func Test_Writer_Accepts_Message_When_Length_Is_Exactly_Max(t *testing.T) {
	t.Parallel()

	buf := newRegion(t, 16, 2)

	w, err := ring.NewWriter(buf, 16, 2)
	require.NoError(t, err)

	msg := []byte(strings.Repeat("m", 15))
	require.NoError(t, w.Write(msg))

	// Terminator lands in the last payload byte of slot 0.
	assert.Equal(t, byte('\n'), buf[17])
	assert.Equal(t, byte('s'), buf[18], "slot 1 announced")
}

func Test_Writer_Never_Fails_When_Writing_Many_Laps_Without_Readers(t *testing.T) {
	t.Parallel()

	buf := newRegion(t, 8, 3)

	w, err := ring.NewWriter(buf, 8, 3)
	require.NoError(t, err)

	for i := range 1000 {
		require.NoError(t, w.Write([]byte{byte('a' + i%26)}))
		assert.Equal(t, (i+1)%3, w.Cursor())
	}
}
