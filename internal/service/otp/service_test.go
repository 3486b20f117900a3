package otp

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/its-ayanshaikh/telemedicine-backend/pkg/kvstore"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/logger"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/metrics"
)

type fakeSender struct {
	to, body string
	err      error
}

func (f *fakeSender) Send(_ context.Context, to, body string) (string, error) {
	f.to, f.body = to, body
	return "SM123", f.err
}

func newRedisGate(t *testing.T, sender *fakeSender, codes ...string) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	s := NewService(kvstore.NewRedisStore(client), sender,
		Config{TTL: 5 * time.Minute, CountryCode: "+91"}, logger.Nop(), metrics.NewNop())
	i := 0
	s.generate = func() (string, error) {
		code := codes[i%len(codes)]
		i++
		return code, nil
	}
	return s, mr
}

func TestIssueThenVerifyIsSingleUse(t *testing.T) {
	sender := &fakeSender{}
	gate, mr := newRedisGate(t, sender, "482913")
	ctx := context.Background()

	code, err := gate.Issue(ctx, 42, "9876543210")
	require.NoError(t, err)
	assert.Equal(t, "482913", code)
	assert.Equal(t, "+919876543210", sender.to)
	assert.Equal(t, "Your login OTP is 482913", sender.body)

	stored, err := mr.Get("otp:42")
	require.NoError(t, err)
	assert.Equal(t, "482913", stored)
	assert.Equal(t, 5*time.Minute, mr.TTL("otp:42"))

	require.NoError(t, gate.Verify(ctx, 42, "482913"))
	assert.ErrorIs(t, gate.Verify(ctx, 42, "482913"), ErrNotFound)
}

// gatedStore holds every DeleteIfEqual call until all expected callers
// have arrived, so they hit the store together.
type gatedStore struct {
	kvstore.Store
	arrived sync.WaitGroup
}

func (g *gatedStore) DeleteIfEqual(ctx context.Context, key, value string) (bool, error) {
	g.arrived.Done()
	g.arrived.Wait()
	return g.Store.DeleteIfEqual(ctx, key, value)
}

func TestConcurrentVerifyConsumesCodeOnce(t *testing.T) {
	const callers = 8

	for name, backing := range map[string]func(t *testing.T) kvstore.Store{
		"memory": func(*testing.T) kvstore.Store { return kvstore.NewMemoryStore(time.Minute) },
		"redis": func(t *testing.T) kvstore.Store {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { client.Close() })
			return kvstore.NewRedisStore(client)
		},
	} {
		t.Run(name, func(t *testing.T) {
			store := &gatedStore{Store: backing(t)}
			store.arrived.Add(callers)
			gate := NewService(store, &fakeSender{}, Config{TTL: time.Minute}, logger.Nop(), metrics.NewNop())
			gate.generate = func() (string, error) { return "482913", nil }
			ctx := context.Background()

			_, err := gate.Issue(ctx, 42, "9876543210")
			require.NoError(t, err)

			var (
				wg        sync.WaitGroup
				succeeded atomic.Int32
				notFound  atomic.Int32
			)
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					switch err := gate.Verify(ctx, 42, "482913"); {
					case err == nil:
						succeeded.Add(1)
					case errors.Is(err, ErrNotFound):
						notFound.Add(1)
					}
				}()
			}
			wg.Wait()

			assert.Equal(t, int32(1), succeeded.Load())
			assert.Equal(t, int32(callers-1), notFound.Load())
		})
	}
}

func TestVerifyMismatchKeepsCode(t *testing.T) {
	gate, _ := newRedisGate(t, &fakeSender{}, "111111")
	ctx := context.Background()

	_, err := gate.Issue(ctx, 7, "+15550001111")
	require.NoError(t, err)

	assert.ErrorIs(t, gate.Verify(ctx, 7, "222222"), ErrMismatch)
	assert.NoError(t, gate.Verify(ctx, 7, "111111"))
}

func TestReissueInvalidatesPreviousCode(t *testing.T) {
	gate, _ := newRedisGate(t, &fakeSender{}, "111111", "222222")
	ctx := context.Background()

	_, err := gate.Issue(ctx, 9, "9876543210")
	require.NoError(t, err)
	_, err = gate.Issue(ctx, 9, "9876543210")
	require.NoError(t, err)

	assert.ErrorIs(t, gate.Verify(ctx, 9, "111111"), ErrMismatch)
	assert.NoError(t, gate.Verify(ctx, 9, "222222"))
}

func TestExpiredCodeIsNotFound(t *testing.T) {
	gate, mr := newRedisGate(t, &fakeSender{}, "333333")
	ctx := context.Background()

	_, err := gate.Issue(ctx, 3, "9876543210")
	require.NoError(t, err)
	mr.FastForward(6 * time.Minute)

	assert.ErrorIs(t, gate.Verify(ctx, 3, "333333"), ErrNotFound)
}

func TestSMSFailureRevokesCode(t *testing.T) {
	gate, mr := newRedisGate(t, &fakeSender{err: errors.New("twilio 500")}, "444444")
	ctx := context.Background()

	_, err := gate.Issue(ctx, 5, "9876543210")
	assert.ErrorIs(t, err, ErrDelivery)
	assert.False(t, mr.Exists("otp:5"))
}

func TestRevoke(t *testing.T) {
	gate := NewService(kvstore.NewMemoryStore(time.Minute), &fakeSender{},
		Config{TTL: time.Minute}, logger.Nop(), metrics.NewNop())
	ctx := context.Background()

	_, err := gate.Issue(ctx, 1, "9876543210")
	require.NoError(t, err)
	require.NoError(t, gate.Revoke(ctx, 1))
	assert.ErrorIs(t, gate.Verify(ctx, 1, "000000"), ErrNotFound)
}

func TestGenerateCodeRange(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := generateCode()
		require.NoError(t, err)
		assert.Len(t, code, 6)
		assert.NotEqual(t, byte('0'), code[0])
	}
}
