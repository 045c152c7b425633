package workerpool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitReturnsResult(t *testing.T) {
	p := New(2, 4)
	defer p.Close()

	result, err := Submit(context.Background(), p, func() (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, result)
}

func TestSubmitPropagatesError(t *testing.T) {
	p := New(2, 4)
	defer p.Close()

	sentinel := errors.New("boom")
	_, err := Submit(context.Background(), p, func() (int, error) {
		return 0, sentinel
	})
	assert.ErrorIs(t, err, sentinel)
}

func TestSubmitRespectsContextCancellation(t *testing.T) {
	p := New(1, 1)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Submit(ctx, p, func() (int, error) {
		return 1, nil
	})
	assert.Error(t, err)
}

func TestPoolProcessesConcurrentSubmissions(t *testing.T) {
	p := New(4, 16)
	defer p.Close()

	results := make(chan int, 10)
	for i := 0; i < 10; i++ {
		i := i
		go func() {
			v, err := Submit(context.Background(), p, func() (int, error) {
				time.Sleep(time.Millisecond)
				return i, nil
			})
			if err == nil {
				results <- v
			}
		}()
	}

	seen := make(map[int]bool)
	for i := 0; i < 10; i++ {
		select {
		case v := <-results:
			seen[v] = true
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for worker pool results")
		}
	}
	assert.Len(t, seen, 10)
}
