package ratelimit

import (
	"context"
	"fmt"
	"strings"

	"github.com/altura-labs/secgate/pkg/infra/prometheus"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

// ipHeaders is the network origin hint chain, most trustworthy first.
var ipHeaders = []string{
	"X-Forwarded-For",
	"X-Real-IP",
	"CF-Connecting-IP",
}

// Service applies per-operation policy on top of a Store and attributes
// traffic to callers. Authenticated abuse is attributed to the account, not
// to a shared egress IP; anonymous traffic is still bounded per address.
type Service struct {
	store     Store
	table     *Table
	logger    *logrus.Logger
	jwtSecret []byte
}

func NewService(store Store, table *Table, logger *logrus.Logger, jwtSecret []byte) *Service {
	return &Service{
		store:     store,
		table:     table,
		logger:    logger,
		jwtSecret: jwtSecret,
	}
}

// CheckInput is one inbound limiter check before identifier resolution.
type CheckInput struct {
	// Identifier is the explicit caller-supplied identity, highest priority.
	Identifier string
	// Bearer is the raw bearer credential, used only to improve attribution.
	Bearer string
	// Headers carries the network origin hints.
	Headers map[string]string
	// Operation names the policy bucket.
	Operation string
}

// Check resolves the caller identity, applies the operation's fixed-window
// policy and records the outcome.
func (s *Service) Check(ctx context.Context, input CheckInput) (Result, error) {
	identifier := s.ResolveIdentifier(input)
	cfg := s.table.Resolve(input.Operation)

	key := fmt.Sprintf("%s:%s", identifier, input.Operation)
	result, err := s.store.Check(ctx, key, cfg)
	if err != nil {
		return Result{}, fmt.Errorf("rate limit check for %q failed: %w", key, err)
	}

	outcome := "allowed"
	if !result.Allowed {
		outcome = "blocked"
		s.logger.WithFields(logrus.Fields{
			"identifier": identifier,
			"operation":  input.Operation,
			"limit":      result.Limit,
		}).Warn("rate limit exceeded")
	}
	prometheus.RateLimitChecksTotal.WithLabelValues(input.Operation, outcome).Inc()
	if counter, ok := s.store.(interface{ Len() int }); ok {
		prometheus.RateLimitActiveKeys.Set(float64(counter.Len()))
	}

	return result, nil
}

// ResolveIdentifier picks the strongest available identity:
// explicit identifier, then the authenticated principal from the bearer
// credential, then the best network origin hint.
func (s *Service) ResolveIdentifier(input CheckInput) string {
	if id := strings.TrimSpace(input.Identifier); id != "" {
		return id
	}
	if sub := s.principalFromBearer(input.Bearer); sub != "" {
		return "user:" + sub
	}
	return "ip:" + originHint(input.Headers)
}

func (s *Service) principalFromBearer(bearer string) string {
	if bearer == "" || len(s.jwtSecret) == 0 {
		return ""
	}
	token, err := jwt.Parse(bearer, func(t *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		s.logger.WithError(err).Debug("bearer credential not usable for attribution")
		return ""
	}
	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return ""
	}
	return subject
}

func originHint(headers map[string]string) string {
	for _, name := range ipHeaders {
		if value, ok := headers[name]; ok && value != "" {
			// Forwarded-for chains list the client first.
			if idx := strings.IndexByte(value, ','); idx >= 0 {
				value = value[:idx]
			}
			if addr := strings.TrimSpace(value); addr != "" {
				return addr
			}
		}
	}
	return "unknown"
}
