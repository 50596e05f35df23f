package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type RedisCacheSuite struct {
	suite.Suite
	mini  *miniredis.Miniredis
	cache *RedisCache
	ctx   context.Context
}

func TestRedisCacheSuite(t *testing.T) {
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupTest() {
	s.mini = miniredis.RunT(s.T())
	client := redis.NewClient(&redis.Options{Addr: s.mini.Addr()})
	s.cache = NewRedisCacheWithClient(client)
	s.ctx = context.Background()
}

func (s *RedisCacheSuite) TearDownTest() {
	if s.cache != nil {
		_ = s.cache.Close()
	}
	if s.mini != nil {
		s.mini.Close()
	}
}

func (s *RedisCacheSuite) TestJSONRoundTripWithTTL() {
	status := LiveStatus{Online: true, MOTD: "CrystalTides", Players: LivePlayers{Online: 3, Max: 100, Sample: []string{"Steve"}}}
	s.Require().NoError(s.cache.SetJSON(s.ctx, statusCacheKey, status, 15*time.Second))

	s.True(s.mini.Exists("crystaltides:server:status"))

	var got LiveStatus
	ok, err := s.cache.GetJSON(s.ctx, statusCacheKey, &got)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(status, got)

	s.mini.FastForward(16 * time.Second)
	ok, err = s.cache.GetJSON(s.ctx, statusCacheKey, &got)
	s.Require().NoError(err)
	s.False(ok)
}

func (s *RedisCacheSuite) TestMissIsNotAnError() {
	var got LiveStatus
	ok, err := s.cache.GetJSON(s.ctx, "nothing", &got)
	s.NoError(err)
	s.False(ok)
}

func (s *RedisCacheSuite) TestStorageInterface() {
	s.Require().NoError(s.cache.Set("limiter:1.2.3.4", []byte("7"), time.Minute))
	s.Require().NoError(s.cache.Set("ignored", nil, time.Minute))

	val, err := s.cache.Get("limiter:1.2.3.4")
	s.Require().NoError(err)
	s.Equal([]byte("7"), val)

	val, err = s.cache.Get("ignored")
	s.NoError(err)
	s.Nil(val)

	s.Require().NoError(s.cache.Delete("limiter:1.2.3.4"))
	val, err = s.cache.Get("limiter:1.2.3.4")
	s.NoError(err)
	s.Nil(val)
}

func (s *RedisCacheSuite) TestResetOnlyTouchesPrefix() {
	s.Require().NoError(s.cache.Set("a", []byte("1"), 0))
	s.Require().NoError(s.cache.Set("b", []byte("2"), 0))
	s.Require().NoError(s.mini.Set("foreign", "keep"))

	s.Require().NoError(s.cache.Reset())

	s.False(s.mini.Exists("crystaltides:a"))
	s.False(s.mini.Exists("crystaltides:b"))
	s.True(s.mini.Exists("foreign"))
}

func TestNewRedisCache_BadURL(t *testing.T) {
	_, err := NewRedisCache("not-a-url")
	assert.Error(t, err)
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	var out ServerResources
	ok, err := c.GetJSON(ctx, resourcesCacheKey, &out)
	require.NoError(t, err)
	assert.False(t, ok)

	in := ServerResources{Status: "running", CPU: 12.5}
	require.NoError(t, c.SetJSON(ctx, resourcesCacheKey, in, time.Hour))
	ok, err = c.GetJSON(ctx, resourcesCacheKey, &out)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, in, out)

	require.NoError(t, c.SetJSON(ctx, "short", in, time.Nanosecond))
	time.Sleep(time.Millisecond)
	ok, err = c.GetJSON(ctx, "short", &out)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCache_ReadsDoNotExtendTTL(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	var out LiveStatus

	require.NoError(t, c.SetJSON(ctx, statusCacheKey, LiveStatus{Online: true}, 100*time.Millisecond))
	require.NoError(t, c.SetJSON(ctx, "forever", LiveStatus{Online: true}, 0))

	time.Sleep(60 * time.Millisecond)
	ok, err := c.GetJSON(ctx, statusCacheKey, &out)
	require.NoError(t, err)
	assert.True(t, ok)

	time.Sleep(60 * time.Millisecond)
	ok, err = c.GetJSON(ctx, statusCacheKey, &out)
	require.NoError(t, err)
	assert.False(t, ok, "expires on schedule despite the earlier hit")

	ok, err = c.GetJSON(ctx, "forever", &out)
	require.NoError(t, err)
	assert.True(t, ok)
}
