// Package retry provides exponential backoff around fallible calls.
//
// Basic usage:
//
//	reply, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func(ctx context.Context) (string, error) {
//		return gen.Generate(ctx, history)
//	})
//
// Errors wrapped with NonRetryable stop the loop immediately. When every
// attempt fails the returned error wraps both ErrMaxRetriesExceeded and the
// last attempt's error.
package retry
