package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

type lessonView struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func TestCacheOrExecute_FetchesOnceThenServesFromCache(t *testing.T) {
	mr, client := newTestRedis(t)
	helper := NewCacheHelper(client, LessonCacheConfig.Prefix)
	ctx := context.Background()

	calls := 0
	fetch := func() (interface{}, error) {
		calls++
		return []lessonView{{ID: "l1", Title: "Intro"}}, nil
	}

	var first []lessonView
	require.NoError(t, helper.CacheOrExecute(ctx, "course-1", &first, time.Minute, fetch))
	assert.True(t, mr.Exists("lessons:course-1"))

	var second []lessonView
	require.NoError(t, helper.CacheOrExecute(ctx, "course-1", &second, time.Minute, fetch))

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
}

func TestCacheOrExecute_PropagatesFetchError(t *testing.T) {
	_, client := newTestRedis(t)
	helper := NewCacheHelper(client, "x:")
	boom := errors.New("boom")

	var dest []lessonView
	err := helper.CacheOrExecute(context.Background(), "k", &dest, time.Minute, func() (interface{}, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestCacheHelper_WithoutClientDegrades(t *testing.T) {
	helper := NewCacheHelper(nil, "x:")
	ctx := context.Background()

	assert.NoError(t, helper.Set(ctx, "k", "v", time.Minute))
	_, err := helper.GetBytes(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheNotAvailable)

	var out string
	require.NoError(t, helper.CacheOrExecute(ctx, "k", &out, time.Minute, func() (interface{}, error) {
		return "fresh", nil
	}))
	assert.Equal(t, "fresh", out)
}

func TestCacheManager_InvalidateCourse(t *testing.T) {
	mr, client := newTestRedis(t)
	cm := NewCacheManager(client)
	ctx := context.Background()

	require.NoError(t, cm.Lesson.Set(ctx, "c1", []lessonView{{ID: "l1"}}, time.Minute))
	require.NoError(t, cm.Course.Set(ctx, "c1", map[string]string{"id": "c1"}, time.Minute))
	require.NoError(t, cm.Lesson.Set(ctx, "c2", []lessonView{{ID: "l2"}}, time.Minute))
	require.NoError(t, cm.CourseList.Set(ctx, "all", []string{"c1", "c2"}, time.Minute))
	require.NoError(t, cm.CourseList.Set(ctx, "visible", []string{"c2"}, time.Minute))

	cm.InvalidateCourse(ctx, "c1")

	assert.False(t, mr.Exists("lessons:c1"))
	assert.False(t, mr.Exists("course:c1"))
	assert.True(t, mr.Exists("lessons:c2"))
	assert.False(t, mr.Exists("courses:all"))
	assert.False(t, mr.Exists("courses:visible"))
}

func TestInvalidatePattern(t *testing.T) {
	mr, client := newTestRedis(t)
	helper := NewCacheHelper(client, "user:")
	ctx := context.Background()

	require.NoError(t, helper.SetBytes(ctx, "id:1", []byte("a"), time.Minute))
	require.NoError(t, helper.SetBytes(ctx, "id:2", []byte("b"), time.Minute))
	require.NoError(t, helper.SetBytes(ctx, "email:x", []byte("c"), time.Minute))

	require.NoError(t, helper.InvalidatePattern(ctx, "id:*"))

	assert.False(t, mr.Exists("user:id:1"))
	assert.False(t, mr.Exists("user:id:2"))
	assert.True(t, mr.Exists("user:email:x"))
}
