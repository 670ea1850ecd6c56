package cserr

import "context"

// RetryHalving runs fn against items, halving the batch on failure and
// retrying once per spec.md §4.F / §7 ("per-batch embedding errors
// bisect once, then give up on the offending batch"). fn must be safe
// to call with sub-slices of items. Failed items are returned so the
// caller can mark them un-embeddable without aborting the larger batch.
func RetryHalving[T any](ctx context.Context, items []T, fn func(context.Context, []T) error) (failed []T) {
	if len(items) == 0 {
		return nil
	}
	if err := fn(ctx, items); err == nil {
		return nil
	}
	if len(items) == 1 {
		return items
	}
	mid := len(items) / 2
	failed = append(failed, retryHalf(ctx, items[:mid], fn)...)
	failed = append(failed, retryHalf(ctx, items[mid:], fn)...)
	return failed
}

// retryHalf applies fn once more to a half-batch; on failure the whole
// half is considered un-embeddable (only one bisection is permitted).
func retryHalf[T any](ctx context.Context, items []T, fn func(context.Context, []T) error) []T {
	if err := fn(ctx, items); err != nil {
		return items
	}
	return nil
}
