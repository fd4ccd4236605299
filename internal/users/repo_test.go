package users

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/grigobio237-eng/Youniqle-sub002/pkg/db/dbtest"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/enums"
)

func TestRepositoryCreateAndContact(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.NewSQLite(t))

	user, err := repo.Create(ctx, CreateUserDTO{Email: " Mina@Example.com ", FirstName: "Mina", LastName: "Park"})
	require.NoError(t, err)
	assert.Equal(t, enums.RoleCustomer, user.Role)
	assert.Equal(t, "mina@example.com", user.Email)

	contact, err := repo.ContactFor(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, Contact{Name: "Mina Park", Email: "mina@example.com"}, contact)

	found, err := repo.FindByEmail(ctx, "mina@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, FromModel(found).ID)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}
