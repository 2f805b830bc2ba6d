package middleware

import (
	"context"
	"log/slog"
	"net"
	"runtime/debug"
	"time"
)

// ConnHandler serves one accepted connection. It owns the connection and
// must close it before returning.
type ConnHandler func(ctx context.Context, conn net.Conn)

// ConnMiddleware wraps a ConnHandler
type ConnMiddleware func(ConnHandler) ConnHandler

// Chain applies middleware so the first listed runs outermost
func Chain(h ConnHandler, mw ...ConnMiddleware) ConnHandler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

// Recovery recovers a panicking handler, logs the stack and closes the
// connection so one bad session cannot take the server down
func Recovery(logger *slog.Logger) ConnMiddleware {
	return func(next ConnHandler) ConnHandler {
		return func(ctx context.Context, conn net.Conn) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered",
						slog.Any("error", err),
						slog.String("stack", string(debug.Stack())),
						slog.String("peer", conn.RemoteAddr().String()),
					)
					_ = conn.Close()
				}
			}()

			next(ctx, conn)
		}
	}
}

// Logging logs each connection once its handler returns
func Logging(logger *slog.Logger) ConnMiddleware {
	return func(next ConnHandler) ConnHandler {
		return func(ctx context.Context, conn net.Conn) {
			start := time.Now()
			peer := conn.RemoteAddr().String()

			logger.Debug("connection opened", slog.String("peer", peer))

			next(ctx, conn)

			logger.Info("connection closed",
				slog.String("peer", peer),
				slog.Duration("duration", time.Since(start)),
			)
		}
	}
}
