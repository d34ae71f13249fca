package repokit

import (
	"context"
	"fmt"
	"time"
)

// MustGuard runs st.Guard with a 5s default deadline and panics on failure.
// Used at process start
func MustGuard(ctx context.Context, st interface{ Guard(context.Context) error }) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	if err := st.Guard(ctx); err != nil {
		panic(fmt.Errorf("dependency guard failed: %w", err))
	}
}
