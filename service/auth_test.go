package service

import (
	"context"
	"testing"

	"github.com/kevinaaaquil/library/backend/config"
	"github.com/kevinaaaquil/library/backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestRegister_DuplicateEmailConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.register(t, "Ann", "a@x.com")

	_, err := f.auth.Register(ctx, RegisterInput{Name: "Ann again", Email: "a@x.com", Password: "other"})
	assert.ErrorIs(t, err, ErrConflict)

	stored, err := f.store.UserByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, first.ID, stored.ID)
	assert.Equal(t, "Ann", stored.Name)
}

func TestRegister_DefaultsRoleAndHashesPassword(t *testing.T) {
	f := newFixture(t)

	u, err := f.auth.Register(context.Background(), RegisterInput{Name: "Bob", Email: "b@x.com", Password: "secret"})
	require.NoError(t, err)

	assert.Equal(t, models.RoleUser, u.Role)
	assert.NotEqual(t, "secret", u.Password)
	assert.NotEmpty(t, u.Password)
	assert.Empty(t, u.Borrowed)
}

func TestRegister_RejectsUnknownRole(t *testing.T) {
	f := newFixture(t)

	_, err := f.auth.Register(context.Background(), RegisterInput{Name: "Eve", Email: "e@x.com", Password: "pw", Role: "root"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "Ann", "a@x.com")

	tests := []struct {
		name     string
		email    string
		password string
		role     string
		wantErr  error
	}{
		{name: "unknown email", email: "z@x.com", password: "pw", role: "user", wantErr: ErrUnauthorized},
		{name: "wrong password", email: "a@x.com", password: "nope", role: "user", wantErr: ErrUnauthorized},
		{name: "wrong role", email: "a@x.com", password: "pw", role: "admin", wantErr: ErrUnauthorized},
		{name: "missing role", email: "a@x.com", password: "pw", role: "", wantErr: ErrUnauthorized},
		{name: "ok", email: "a@x.com", password: "pw", role: "user"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.auth.Login(ctx, tt.email, tt.password, tt.role)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, res)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, res.AccessToken)
			assert.NotEmpty(t, res.RefreshToken)
			assert.Empty(t, res.User.Password)

			claims, err := f.jwt.VerifyAccessToken(res.AccessToken)
			require.NoError(t, err)
			assert.Equal(t, res.User.ID.Hex(), claims.UserID)
			assert.Equal(t, "user", claims.Role)
		})
	}
}

func TestRefresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "Ann", "a@x.com")
	res, err := f.auth.Login(ctx, "a@x.com", "pw", "user")
	require.NoError(t, err)

	t.Run("registered token mints access token", func(t *testing.T) {
		access, err := f.auth.Refresh(ctx, res.RefreshToken)
		require.NoError(t, err)
		claims, err := f.jwt.VerifyAccessToken(access)
		require.NoError(t, err)
		assert.Equal(t, res.User.ID.Hex(), claims.UserID)
		assert.Equal(t, "a@x.com", claims.Email)
		assert.Equal(t, "user", claims.Role)
	})

	t.Run("token is not rotated", func(t *testing.T) {
		_, err := f.auth.Refresh(ctx, res.RefreshToken)
		assert.NoError(t, err)
	})

	t.Run("well signed but unregistered token is rejected", func(t *testing.T) {
		stray, err := f.jwt.GenerateRefreshToken(res.User.ID.Hex(), "a@x.com", "user")
		require.NoError(t, err)
		_, err = f.auth.Refresh(ctx, stray.Raw)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("empty token", func(t *testing.T) {
		_, err := f.auth.Refresh(ctx, "")
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("access token is not a refresh token", func(t *testing.T) {
		_, err := f.auth.Refresh(ctx, res.AccessToken)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("logout revokes", func(t *testing.T) {
		require.NoError(t, f.auth.Logout(ctx, res.RefreshToken))
		_, err := f.auth.Refresh(ctx, res.RefreshToken)
		assert.ErrorIs(t, err, ErrForbidden)
		assert.NoError(t, f.auth.Logout(ctx, res.RefreshToken), "logout is idempotent")
	})
}

func TestDeleteAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ann := f.register(t, "Ann", "a@x.com")
	bob := f.register(t, "Bob", "b@x.com")
	book := f.addBook(t, "Dune")

	_, err := f.lib.Like(ctx, book.ID, ann.ID)
	require.NoError(t, err)
	_, err = f.lib.Like(ctx, book.ID, bob.ID)
	require.NoError(t, err)
	_, err = f.lib.AddReview(ctx, book.ID, ReviewInput{UserID: ann.ID, Review: "great"})
	require.NoError(t, err)
	res, err := f.auth.Login(ctx, "a@x.com", "pw", "user")
	require.NoError(t, err)

	require.NoError(t, f.auth.DeleteAccount(ctx, ann.ID))

	_, err = f.store.UserByID(ctx, ann.ID)
	assert.Error(t, err)

	got, err := f.lib.GetByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{bob.ID}, got.Likes)
	assert.Empty(t, got.Reviews)

	_, err = f.auth.Refresh(ctx, res.RefreshToken)
	assert.ErrorIs(t, err, ErrForbidden, "tokens of a deleted user are revoked")

	err = f.auth.DeleteAccount(ctx, ann.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteAccount_WithoutCascadeLeavesReferences(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.CascadeUserDelete = false })
	ctx := context.Background()
	ann := f.register(t, "Ann", "a@x.com")
	book := f.addBook(t, "Dune")
	_, err := f.lib.Like(ctx, book.ID, ann.ID)
	require.NoError(t, err)

	require.NoError(t, f.auth.DeleteAccount(ctx, ann.ID))

	got, err := f.lib.GetByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{ann.ID}, got.Likes)
}
