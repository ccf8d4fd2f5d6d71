// Package provider implements the social graph clients (Twitter, Google) and their factory.
package provider

import (
	"context"
	"errors"
	"net/http"
	"time"

	"importer_server/core/port/out"
	"importer_server/pkg/logger"

	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

// newBreaker returns the circuit breaker shared by every client of one provider.
// Client errors belong to one account and count as successes, so a bad token
// cannot open the circuit for everyone.
func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,                // requests allowed while half-open
		Interval:    60 * time.Second, // closed-state counter reset
		Timeout:     30 * time.Second, // open duration before half-open
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		IsSuccessful: healthyResponse,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("[CircuitBreaker] %s: state changed from %s to %s", name, from.String(), to.String())
		},
	})
}

// healthyResponse reports whether err says nothing about the provider's health.
func healthyResponse(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	status := statusOf(err)
	return status >= 400 && status < 500 && status != http.StatusTooManyRequests
}

// execute runs fn through the breaker and returns its error as a TransportError.
func execute(cb *gobreaker.CircuitBreaker, fn func() error) error {
	_, err := cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if err == nil {
		return nil
	}

	var te *out.TransportError
	if errors.As(err, &te) {
		return err
	}
	return out.NewTransportError(statusOf(err), err)
}

// statusOf extracts an HTTP status from the error types our clients produce.
func statusOf(err error) int {
	var te *out.TransportError
	if errors.As(err, &te) {
		return te.StatusCode
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) && rerr.Response != nil {
		return rerr.Response.StatusCode
	}
	return 0
}
