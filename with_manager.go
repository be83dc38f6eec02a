package scripthost

import "context"

// WithManager manages a Manager's lifecycle with automatic cleanup.
//
// It creates a Manager with the provided options, calls fn, and closes the
// Manager when fn returns. A Close failure is logged but does not override
// fn's error.
//
// Example usage:
//
//	err := scripthost.WithManager(ctx, func(m *scripthost.Manager) error {
//	    res, err := m.Run(ctx, argv, "write-output hello")
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Print(res.Stdout)
//	    return nil
//	},
//	    scripthost.WithLogger(log),
//	)
func WithManager(ctx context.Context, fn func(*Manager) error, opts ...Option) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	m := New(opts...)

	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			m.options.Logger.Warn("failed to close manager", "error", closeErr)
		}
	}()

	return fn(m)
}
