package casdoor

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/enrollment-service/internal/models"
	"github.com/SAP-F-2025/enrollment-service/internal/repositories"
)

type fakeDirectory struct {
	users map[string]*casdoorsdk.User
	calls int
}

func (f *fakeDirectory) GetUserByUserId(id string) (*casdoorsdk.User, error) {
	f.calls++
	return f.users[id], nil
}

func TestUserCasdoor_GetByIDCachesAndMapsRole(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	dir := &fakeDirectory{users: map[string]*casdoorsdk.User{
		"u1": {
			Id:          "u1",
			DisplayName: "Ana Teacher",
			Email:       "ana@example.com",
			Roles:       []*casdoorsdk.Role{{Name: "Instructor"}},
		},
	}}
	repo := newUserCasdoor(dir, client)
	ctx := context.Background()

	user, err := repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleTeacher, user.Role)
	assert.Nil(t, user.AvatarURL)

	_, err = repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, dir.calls)

	ok, err := repo.HasRole(ctx, "u1", models.RoleTeacher)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUserCasdoor_MissingUser(t *testing.T) {
	repo := newUserCasdoor(&fakeDirectory{users: map[string]*casdoorsdk.User{}}, nil)

	_, err := repo.GetByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	exists, err := repo.ExistsByID(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPrimaryRole(t *testing.T) {
	tests := []struct {
		name string
		user *casdoorsdk.User
		want models.UserRole
	}{
		{"no roles", &casdoorsdk.User{}, models.RoleStudent},
		{"admin flag", &casdoorsdk.User{IsAdmin: true}, models.RoleAdmin},
		{"teacher and student", &casdoorsdk.User{Roles: []*casdoorsdk.Role{{Name: "student"}, {Name: "teacher"}}}, models.RoleTeacher},
		{"administrator role", &casdoorsdk.User{Roles: []*casdoorsdk.Role{{Name: "Administrator"}}}, models.RoleAdmin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, primaryRole(tt.user))
		})
	}
}
