package grpc

import (
	"context"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
)

// RequestTimeout gives calls without a deadline a default one.
func RequestTimeout(timeout time.Duration) grpc.UnaryServerInterceptor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := ctx.Deadline(); ok {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		return handler(ctx, req)
	}
}

type tokenVerifier interface {
	Verify(token string) (string, error)
}

// OperatorAuth requires a valid bearer session token on operator methods.
// Other methods pass through untouched.
func OperatorAuth(v tokenVerifier, log *slog.Logger) grpc.UnaryServerInterceptor {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "grpc.auth"))

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !operatorMethods[info.FullMethod] {
			return handler(ctx, req)
		}
		if v == nil {
			return nil, statusError(codes.Unauthenticated, ReasonUnauthenticated, "operator authentication required")
		}
		if _, err := v.Verify(bearerToken(ctx)); err != nil {
			log.Warn("operator call rejected", slog.String("method", info.FullMethod))
			return nil, statusError(codes.Unauthenticated, ReasonUnauthenticated, "operator authentication required")
		}
		return handler(ctx, req)
	}
}

func bearerToken(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("authorization")
	if len(values) == 0 {
		return ""
	}
	raw := strings.TrimSpace(values[0])
	if len(raw) < len("bearer ") || !strings.EqualFold(raw[:len("bearer ")], "bearer ") {
		return ""
	}
	return strings.TrimSpace(raw[len("bearer "):])
}

// PeerLimiter hands out one token bucket per remote host.
type PeerLimiter struct {
	limit rate.Limit
	burst int
	idle  time.Duration
	now   func() time.Time

	mu        sync.Mutex
	limiters  map[string]*peerLimiter
	lastSweep time.Time
}

type peerLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewPeerLimiter(rps float64, burst int) *PeerLimiter {
	if burst < 1 {
		burst = 1
	}
	return &PeerLimiter{
		limit:    rate.Limit(rps),
		burst:    burst,
		idle:     10 * time.Minute,
		now:      time.Now,
		limiters: make(map[string]*peerLimiter),
	}
}

func (l *PeerLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > l.idle {
		for k, pl := range l.limiters {
			if now.Sub(pl.lastSeen) > l.idle {
				delete(l.limiters, k)
			}
		}
		l.lastSweep = now
	}

	pl, ok := l.limiters[key]
	if !ok {
		pl = &peerLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = pl
	}
	pl.lastSeen = now
	return pl.limiter.AllowN(now, 1)
}

// RateLimit throttles client mutations and logins per peer. A zero rate
// disables it.
func RateLimit(l *PeerLimiter, log *slog.Logger) grpc.UnaryServerInterceptor {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "grpc.ratelimit"))

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if l == nil || l.limit <= 0 || !limitedMethods[info.FullMethod] {
			return handler(ctx, req)
		}
		key := peerKey(ctx)
		if !l.Allow(key) {
			log.Warn("rate limit exceeded", slog.String("peer", key), slog.String("method", info.FullMethod))
			return nil, statusError(codes.ResourceExhausted, ReasonRateLimited, "Too many requests. Try again later.")
		}
		return handler(ctx, req)
	}
}

func peerKey(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return "unknown"
	}
	addr := p.Addr.String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
