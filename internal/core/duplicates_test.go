package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckDuplicates(t *testing.T) {
	def := stockDefinition()
	reader := &mapReader{records: []*Record{
		{ID: "r1", Fields: Fields{"code": "A1"}},
	}}
	ctx := context.Background()

	t.Run("conflict names the existing record", func(t *testing.T) {
		issues, err := CheckDuplicates(ctx, reader, def, Fields{"code": "A1"}, "")
		require.NoError(t, err)
		require.Len(t, issues, 1)
		assert.Equal(t, "code", issues[0].Field)
		assert.Equal(t, SeverityError, issues[0].Severity)
		assert.Equal(t, `Code "A1" already exists (record r1)`, issues[0].Message)
	})

	t.Run("own record is excluded", func(t *testing.T) {
		issues, err := CheckDuplicates(ctx, reader, def, Fields{"code": "A1"}, "r1")
		require.NoError(t, err)
		assert.Empty(t, issues)
	})

	t.Run("unused key", func(t *testing.T) {
		issues, err := CheckDuplicates(ctx, reader, def, Fields{"code": "B2"}, "")
		require.NoError(t, err)
		assert.NotNil(t, issues)
		assert.Empty(t, issues)
	})

	t.Run("blank key skips lookup", func(t *testing.T) {
		issues, err := CheckDuplicates(ctx, &mapReader{err: errors.New("must not be called")}, def, Fields{}, "")
		require.NoError(t, err)
		assert.Empty(t, issues)
	})

	t.Run("storage error", func(t *testing.T) {
		_, err := CheckDuplicates(ctx, &mapReader{err: errors.New("connection reset")}, def, Fields{"code": "A1"}, "")
		assert.ErrorContains(t, err, "connection reset")
	})
}
