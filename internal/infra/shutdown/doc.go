// Package shutdown runs cleanup hooks when feedauth-cli is asked to stop.
//
// Usage:
//
//	ctx, stop := shutdown.NotifyContext(context.Background())
//	defer stop()
//	h := shutdown.NewHandler(5*time.Second, log)
//	h.OnShutdown("session", mgr.Close)
//	go h.Wait(ctx)
//	defer h.Shutdown()
package shutdown
