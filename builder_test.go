package disruptor_test

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five-vee/disruptor/v2"
)

func TestBuilder(t *testing.T) {
	type test struct {
		name         string
		capacity     int64
		readerGroups [][]disruptor.ReaderFunc
		wantErr      error
	}
	tests := []test{
		{
			name:         "zero capacity",
			capacity:     0,
			readerGroups: [][]disruptor.ReaderFunc{{disruptor.SingleReaderFunc(func(*int) {})}},
			wantErr:      disruptor.ErrCapacity,
		},
		{
			name:         "negative capacity",
			capacity:     -2,
			readerGroups: [][]disruptor.ReaderFunc{{disruptor.SingleReaderFunc(func(*int) {})}},
			wantErr:      disruptor.ErrCapacity,
		},
		{
			name:         "non power of two capacity",
			capacity:     3,
			readerGroups: [][]disruptor.ReaderFunc{{disruptor.SingleReaderFunc(func(*int) {})}},
			wantErr:      disruptor.ErrCapacity,
		},
		{
			name:         "missing reader group",
			capacity:     4,
			readerGroups: nil,
			wantErr:      disruptor.ErrMissingReaderGroup,
		},
		{
			name:     "empty reader group",
			capacity: 4,
			readerGroups: [][]disruptor.ReaderFunc{
				{disruptor.SingleReaderFunc(func(*int) {})},
				{},
			},
			wantErr: disruptor.ErrEmptyReaderGroup,
		},
		{
			name:     "valid",
			capacity: 4,
			readerGroups: [][]disruptor.ReaderFunc{
				{
					disruptor.SingleReaderFunc(func(*int) {}),
					disruptor.BatchReaderFunc(func(first, second []int) {}),
				},
				{
					disruptor.SingleReaderFunc(func(*int) {}),
				},
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			b := disruptor.NewBuilder[int](test.capacity)
			for _, group := range test.readerGroups {
				b = b.WithReaderGroup(group...)
			}
			d, err := b.Build()
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("Build(%q) got err = %v, want = %v", test.name, err, test.wantErr)
			}
			if err != nil {
				return
			}
			if d == nil {
				t.Fatalf("Build(%q) got invalid nil disruptor", test.name)
			}
		})
	}
}

func TestBuilder_MismatchedReader(t *testing.T) {
	_, err := disruptor.NewBuilder[int](4).
		WithReaderGroup(disruptor.SingleReaderFunc(func(*string) {})).
		Build()
	assert.Error(t, err)
}

func TestBuilder_Pipeline(t *testing.T) {
	const numEvents = 1000
	logger, _ := testLogger()

	var (
		singleSum int64
		batchSum  int64
		batches   int
		wrapped   int
		finalSum  atomic.Int64
	)
	d, err := disruptor.NewBuilder[int64](16).
		WithEventFactory(func() int64 { return -1 }).
		WithWriterYield(func(int) {}).
		WithOptions(disruptor.WithLogger(logger)).
		WithReaderGroup(
			disruptor.SingleReaderFunc(func(v *int64) { singleSum += *v }),
			disruptor.BatchReaderFunc(func(first, second []int64) {
				batches++
				if len(second) > 0 {
					wrapped++
				}
				for _, v := range first {
					batchSum += v
				}
				for _, v := range second {
					batchSum += v
				}
			}),
		).
		WithReaderGroup(disruptor.SingleReaderFunc(func(v *int64) {
			finalSum.Add(*v)
			*v = 0
		})).
		Build()
	require.NoError(t, err)
	assert.EqualValues(t, -1, *d.Get(0), "slots are filled by the event factory")

	rb, err := d.Start()
	require.NoError(t, err)
	var want int64
	for i := int64(1); i <= numEvents; i++ {
		seq := rb.Next()
		*rb.Get(seq) = i
		rb.Publish(seq)
		want += i
	}
	require.NoError(t, d.Shutdown(0))
	require.NoError(t, d.Wait())

	assert.Equal(t, want, singleSum)
	assert.Equal(t, want, batchSum)
	assert.Equal(t, want, finalSum.Load())
	assert.Positive(t, batches)
	assert.LessOrEqual(t, wrapped, batches)
}
