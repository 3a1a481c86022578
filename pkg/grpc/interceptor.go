package grpc

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	googlegrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"SimpleTodoAPI/pkg/logger"
)

// RequestIDMetadataKey ключ metadata с идентификатором запроса
const RequestIDMetadataKey = "x-request-id"

// ServerOptions возвращает опции сервера с recovery и логированием вызовов
func ServerOptions(log logger.Logger) []googlegrpc.ServerOption {
	return []googlegrpc.ServerOption{
		googlegrpc.ChainUnaryInterceptor(
			LoggingServerInterceptor(log),
			RecoveryServerInterceptor(log),
		),
		googlegrpc.ChainStreamInterceptor(
			LoggingStreamServerInterceptor(log),
			RecoveryStreamServerInterceptor(log),
		),
	}
}

// withRequestID переносит x-request-id из metadata в контекст логгера
func withRequestID(ctx context.Context) context.Context {
	requestID := ""
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(RequestIDMetadataKey); len(values) > 0 {
			requestID = values[0]
		}
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return logger.WithTraceID(ctx, requestID)
}

func logCompletion(log logger.Logger, ctx context.Context, method string, start time.Time, err error) {
	logFields := []logger.Field{
		logger.String("grpc_method", method),
		logger.CtxField(ctx),
		logger.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
	}

	if err != nil {
		st, _ := status.FromError(err)
		logFields = append(logFields,
			logger.Int("grpc_code", int(st.Code())),
			logger.String("grpc_message", st.Message()),
		)
		log.Warn("gRPC server call failed", logFields...)
		return
	}

	log.Debug("gRPC server call completed", logFields...)
}

// LoggingServerInterceptor логирует unary вызовы на сервере
func LoggingServerInterceptor(log logger.Logger) googlegrpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *googlegrpc.UnaryServerInfo, handler googlegrpc.UnaryHandler) (interface{}, error) {
		ctx = withRequestID(ctx)
		start := time.Now()

		resp, err := handler(ctx, req)

		logCompletion(log, ctx, info.FullMethod, start, err)
		return resp, err
	}
}

// wrappedStream подменяет контекст потока
type wrappedStream struct {
	googlegrpc.ServerStream
	ctx context.Context
}

func (w *wrappedStream) Context() context.Context {
	return w.ctx
}

// LoggingStreamServerInterceptor логирует потоковые вызовы (Health/Watch)
func LoggingStreamServerInterceptor(log logger.Logger) googlegrpc.StreamServerInterceptor {
	return func(srv interface{}, ss googlegrpc.ServerStream, info *googlegrpc.StreamServerInfo, handler googlegrpc.StreamHandler) error {
		ctx := withRequestID(ss.Context())
		start := time.Now()

		log.Debug("gRPC stream started", logger.String("grpc_method", info.FullMethod), logger.CtxField(ctx))
		err := handler(srv, &wrappedStream{ServerStream: ss, ctx: ctx})

		logCompletion(log, ctx, info.FullMethod, start, err)
		return err
	}
}

// recoverToStatus логирует панику и возвращает ошибку codes.Internal
func recoverToStatus(log logger.Logger, ctx context.Context, method string, p interface{}) error {
	log.Error("Panic recovered in gRPC handler",
		logger.Any("panic", p),
		logger.String("stack_trace", string(debug.Stack())),
		logger.String("grpc_method", method),
		logger.CtxField(ctx))
	return status.Error(codes.Internal, "internal server error")
}

// RecoveryServerInterceptor превращает панику обработчика в codes.Internal
func RecoveryServerInterceptor(log logger.Logger) googlegrpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *googlegrpc.UnaryServerInfo, handler googlegrpc.UnaryHandler) (resp interface{}, err error) {
		defer func() {
			if p := recover(); p != nil {
				err = recoverToStatus(log, ctx, info.FullMethod, p)
			}
		}()

		return handler(ctx, req)
	}
}

// RecoveryStreamServerInterceptor то же для потоковых вызовов
func RecoveryStreamServerInterceptor(log logger.Logger) googlegrpc.StreamServerInterceptor {
	return func(srv interface{}, ss googlegrpc.ServerStream, info *googlegrpc.StreamServerInfo, handler googlegrpc.StreamHandler) (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = recoverToStatus(log, ss.Context(), info.FullMethod, p)
			}
		}()

		return handler(srv, ss)
	}
}
