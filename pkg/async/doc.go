// Package async runs background work off the request path.
//
// SafeGo recovers panics, enforces a timeout and logs failures through the
// context logger:
//
//	async.SafeGo(r.Context(), 5*time.Second, "audit denial", func(ctx context.Context) error {
//		return auditLogger.Log(ctx, entry)
//	})
package async
