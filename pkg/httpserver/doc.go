// Package httpserver runs the quota HTTP API with graceful shutdown and
// exposes liveness and readiness handlers.
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, router); err != nil {
//		return err
//	}
//
// Run returns once ctx is cancelled and in-flight requests have finished or
// the shutdown timeout has elapsed. Listen errors wrap ErrStart, shutdown
// errors wrap ErrShutdown.
package httpserver
