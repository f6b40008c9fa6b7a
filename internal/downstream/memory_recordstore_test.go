package downstream

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRecordStore_UpsertIsIdempotent(t *testing.T) {
	s := NewMemoryRecordStore()
	ctx := context.Background()

	first, err := s.Upsert(ctx, CanonicalRecord{Entity: "the_7_space", Email: "a@x.com", Name: "Ada"})
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := s.Upsert(ctx, CanonicalRecord{Entity: "the_7_space", Email: "A@X.COM", Name: "Ada L."})
	require.NoError(t, err)
	assert.Equal(t, first, second, "same entity+email must keep the same record ID")
	assert.Equal(t, 1, s.Len())
}

func TestMemoryRecordStore_DistinctEntitiesGetDistinctRecords(t *testing.T) {
	s := NewMemoryRecordStore()
	ctx := context.Background()

	first, err := s.Upsert(ctx, CanonicalRecord{Entity: "the_7_space", Email: "a@x.com"})
	require.NoError(t, err)
	second, err := s.Upsert(ctx, CanonicalRecord{Entity: "am_consulting", Email: "a@x.com"})
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, 2, s.Len())
}

func TestMemoryRecordStore_RejectsRecordWithoutNaturalKey(t *testing.T) {
	s := NewMemoryRecordStore()

	_, err := s.Upsert(context.Background(), CanonicalRecord{Entity: "the_7_space"})
	assert.ErrorIs(t, err, ErrInvalidRecord)

	_, err = s.Upsert(context.Background(), CanonicalRecord{Email: "a@x.com"})
	assert.ErrorIs(t, err, ErrInvalidRecord)
}
