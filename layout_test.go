package arena

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLayoutValid(t *testing.T) {
	l, err := NewLayout(64)
	require.NoError(t, err)
	assert.Equal(t, uint32(64), l.EntriesPerBucket)
	assert.Equal(t, uint32(1), l.BitmapWords)
	assert.Equal(t, uint32(4294967295/64), l.maxBuckets())
}

func TestNewLayoutRejectsZero(t *testing.T) {
	_, err := NewLayout(0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLayoutInvalid))
}

func TestNewLayoutRejectsNonMultipleOf64(t *testing.T) {
	_, err := NewLayout(100)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLayoutInvalid))
}

func TestLayoutValidateCatchesMismatchedBitmapWords(t *testing.T) {
	l := Layout{EntriesPerBucket: 128, BitmapWords: 1}
	require.Error(t, l.validate())
}

func TestDefaultLayoutMatchesSpecBasicScenario(t *testing.T) {
	assert.Equal(t, uint32(64), DefaultLayout.EntriesPerBucket)
	assert.Equal(t, uint32(1), DefaultLayout.BitmapWords)
	require.NoError(t, DefaultLayout.validate())
}
