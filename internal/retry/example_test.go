package retry_test

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"time"

	"github.com/coral-mesh/irscan/internal/retry"
)

// Example retries a worker spawn while the process table is full.
func Example() {
	cfg := retry.Config{
		MaxRetries:     3,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     100 * time.Millisecond,
		Jitter:         0.1,
	}

	attempt := 0
	err := retry.Do(context.Background(), cfg, func() error {
		attempt++
		if attempt < 3 {
			return fmt.Errorf("fork/exec irscan: %w", syscall.EAGAIN)
		}
		return nil
	}, func(err error) bool {
		return errors.Is(err, syscall.EAGAIN)
	})

	if err != nil {
		fmt.Printf("Failed: %v\n", err)
	} else {
		fmt.Printf("Worker started after %d attempts\n", attempt)
	}
	// Output: Worker started after 3 attempts
}

// Example_permanent stops at the first error the predicate rejects.
func Example_permanent() {
	cfg := retry.Config{
		MaxRetries:     5,
		InitialBackoff: time.Millisecond,
	}

	attempt := 0
	err := retry.Do(context.Background(), cfg, func() error {
		attempt++
		return fmt.Errorf("fork/exec irscan: %w", syscall.ENOENT)
	}, func(err error) bool {
		return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.ETXTBSY)
	})

	fmt.Printf("attempts=%d missing=%t\n", attempt, errors.Is(err, syscall.ENOENT))
	// Output: attempts=1 missing=true
}

// Example_withTimeout bounds the retries with a context deadline.
func Example_withTimeout() {
	cfg := retry.Config{
		MaxRetries:     5,
		InitialBackoff: 100 * time.Millisecond,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	err := retry.Do(ctx, cfg, func() error {
		return syscall.EAGAIN
	}, nil)

	if errors.Is(err, context.DeadlineExceeded) {
		fmt.Println("Spawn timed out")
	} else {
		fmt.Printf("Failed: %v\n", err)
	}
	// Output: Spawn timed out
}
