// Package storagetest holds the behaviour every storage.Storage backend
// must share. Backend test files call Run with a constructor for a fresh,
// migrated, empty store.
package storagetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aanand-mishra/etudiants-api/internal/storage"
	"github.com/aanand-mishra/etudiants-api/internal/types"
)

// StringPtr returns a pointer to s, for building payloads and expected rows.
func StringPtr(s string) *string {
	return &s
}

// Run executes the contract suite. newStore is called once per subtest.
func Run(t *testing.T, newStore func(t *testing.T) storage.Storage) {
	t.Run("EmptyList", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		students, err := s.GetStudents(ctx)
		require.NoError(t, err)
		assert.NotNil(t, students)
		assert.Empty(t, students)

		n, err := s.CountStudents(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("CreateAndGet", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id, err := s.CreateStudent(ctx, types.StudentPayload{
			LastName:  StringPtr("Dupont"),
			FirstName: StringPtr("Jean"),
			Address:   StringPtr("1 Rue A"),
		})
		require.NoError(t, err)
		assert.Positive(t, id)

		got, err := s.GetStudentByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, types.Student{
			ID:        id,
			LastName:  "Dupont",
			FirstName: StringPtr("Jean"),
			Address:   StringPtr("1 Rue A"),
		}, got)
	})

	t.Run("CreateStoresNilAsNull", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id, err := s.CreateStudent(ctx, types.StudentPayload{LastName: StringPtr("Martin")})
		require.NoError(t, err)

		got, err := s.GetStudentByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Martin", got.LastName)
		assert.Nil(t, got.FirstName)
		assert.Nil(t, got.Address)
	})

	t.Run("CreateWithoutLastNameViolatesConstraint", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.CreateStudent(ctx, types.StudentPayload{FirstName: StringPtr("Jean")})
		require.Error(t, err)
		assert.ErrorIs(t, err, storage.ErrConstraintViolation)

		n, err := s.CountStudents(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("IdsAreDistinct", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		a, err := s.CreateStudent(ctx, types.StudentPayload{LastName: StringPtr("A")})
		require.NoError(t, err)
		b, err := s.CreateStudent(ctx, types.StudentPayload{LastName: StringPtr("B")})
		require.NoError(t, err)
		assert.NotEqual(t, a, b)

		students, err := s.GetStudents(ctx)
		require.NoError(t, err)
		assert.Len(t, students, 2)

		n, err := s.CountStudents(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)

		_, err := s.GetStudentByID(context.Background(), 4242)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("UpdateReplacesAllColumns", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id, err := s.CreateStudent(ctx, types.StudentPayload{
			LastName:  StringPtr("Dupont"),
			FirstName: StringPtr("Jean"),
			Address:   StringPtr("1 Rue A"),
		})
		require.NoError(t, err)

		updated, err := s.UpdateStudentByID(ctx, id, types.StudentPayload{
			LastName:  StringPtr("Durand"),
			FirstName: StringPtr("NewName"),
		})
		require.NoError(t, err)
		assert.Equal(t, types.Student{
			ID:        id,
			LastName:  "Durand",
			FirstName: StringPtr("NewName"),
			Address:   nil,
		}, updated)

		got, err := s.GetStudentByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, updated, got)
	})

	t.Run("UpdateMissing", func(t *testing.T) {
		s := newStore(t)

		_, err := s.UpdateStudentByID(context.Background(), 4242, types.StudentPayload{
			LastName: StringPtr("Nobody"),
		})
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("UpdateNullLastNameViolatesConstraint", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id, err := s.CreateStudent(ctx, types.StudentPayload{LastName: StringPtr("Dupont")})
		require.NoError(t, err)

		_, err = s.UpdateStudentByID(ctx, id, types.StudentPayload{FirstName: StringPtr("Jean")})
		assert.ErrorIs(t, err, storage.ErrConstraintViolation)

		got, err := s.GetStudentByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Dupont", got.LastName)
	})

	t.Run("DeleteReturnsRow", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id, err := s.CreateStudent(ctx, types.StudentPayload{
			LastName: StringPtr("Dupont"),
			Address:  StringPtr("1 Rue A"),
		})
		require.NoError(t, err)

		deleted, err := s.DeleteStudentByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, types.Student{
			ID:       id,
			LastName: "Dupont",
			Address:  StringPtr("1 Rue A"),
		}, deleted)

		_, err = s.GetStudentByID(ctx, id)
		assert.ErrorIs(t, err, storage.ErrNotFound)

		_, err = s.DeleteStudentByID(ctx, id)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("Ping", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.Ping(context.Background()))
	})
}
