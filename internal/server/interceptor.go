package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/parivyaya/internal/common"
)

const requestIDHeader = "x-request-id"

// UnaryLogging tags each call with a request id and a request-scoped logger,
// then logs the outcome.
func UnaryLogging(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		rid := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get(requestIDHeader); len(v) > 0 {
				rid = v[0]
			}
		}
		if rid == "" {
			rid = uuid.New().String()
		}
		log := logger.With("request_id", rid, "method", info.FullMethod)
		ctx = common.WithLogger(common.WithRequestID(ctx, rid), log)
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDHeader, rid))

		start := time.Now()
		resp, err := handler(ctx, req)
		if err != nil {
			log.Warn("rpc failed", "code", status.Code(err).String(), "error", err, "elapsed_ms", time.Since(start).Milliseconds())
			return resp, err
		}
		log.Info("rpc ok", "elapsed_ms", time.Since(start).Milliseconds())
		return resp, nil
	}
}
