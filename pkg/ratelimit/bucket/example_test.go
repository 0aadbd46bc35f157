package bucket_test

import (
	"context"
	"fmt"
	"time"

	"github.com/vnykmshr/pageflow/pkg/ratelimit/bucket"
)

func Example() {
	limiter, err := bucket.New(10, 5)
	if err != nil {
		panic(err)
	}

	allowed := 0
	for i := 0; i < 8; i++ {
		if limiter.Allow() {
			allowed++
		}
	}
	fmt.Println("allowed", allowed)

	// Output: allowed 5
}

func Example_wait() {
	limiter, _ := bucket.New(1, 1)

	ctx := context.Background()
	if err := limiter.Wait(ctx); err != nil {
		panic(err)
	}
	fmt.Println("first call proceeds")

	ctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	fmt.Println("second call:", limiter.Wait(ctx))

	// Output:
	// first call proceeds
	// second call: context deadline exceeded
}
