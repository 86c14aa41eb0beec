// Attribution Measurement Backend
// SPDX-License-Identifier: AGPL-3.0-or-later

package eventprocessor

import (
	"errors"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

func TestNewCircuitBreaker(t *testing.T) {
	cfg := DefaultCircuitBreakerConfig("test-breaker")
	cb := NewCircuitBreaker(cfg)

	if cb == nil {
		t.Fatal("Expected non-nil circuit breaker")
	}
	if cb.Name() != "test-breaker" {
		t.Errorf("Expected name=test-breaker, got %s", cb.Name())
	}
}

func TestCircuitBreakerState(t *testing.T) {
	cfg := DefaultCircuitBreakerConfig("test-breaker")
	cb := NewCircuitBreaker(cfg)

	if state := CircuitBreakerState(cb); state != "closed" {
		t.Errorf("Expected initial state=closed, got %s", state)
	}
}

func TestExecuteWithBreaker(t *testing.T) {
	t.Run("successful execution", func(t *testing.T) {
		cb := NewCircuitBreaker(DefaultCircuitBreakerConfig("success-test"))

		result, err := ExecuteWithBreaker(cb, func() (interface{}, error) {
			return "success", nil
		})

		if err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
		if result != "success" {
			t.Errorf("Expected 'success', got %v", result)
		}
	})

	t.Run("circuit opens after failures", func(t *testing.T) {
		cfg := CircuitBreakerConfig{
			Name:             "open-test",
			MaxRequests:      1,
			Interval:         time.Second,
			Timeout:          time.Second,
			FailureThreshold: 2,
		}
		cb := NewCircuitBreaker(cfg)
		testErr := errors.New("fail")

		_, _ = ExecuteWithBreaker(cb, func() (interface{}, error) { return nil, testErr })
		_, _ = ExecuteWithBreaker(cb, func() (interface{}, error) { return nil, testErr })

		_, err := ExecuteWithBreaker(cb, func() (interface{}, error) {
			return "should not execute", nil
		})
		if !errors.Is(err, gobreaker.ErrOpenState) {
			t.Errorf("Expected ErrOpenState, got %v", err)
		}
	})
}

func TestCircuitBreakerRecovery(t *testing.T) {
	cfg := CircuitBreakerConfig{
		Name:             "recovery-test",
		MaxRequests:      1,
		Interval:         100 * time.Millisecond,
		Timeout:          100 * time.Millisecond,
		FailureThreshold: 1,
	}
	cb := NewCircuitBreaker(cfg)

	_, _ = ExecuteWithBreaker(cb, func() (interface{}, error) { return nil, errors.New("fail") })

	_, err := ExecuteWithBreaker(cb, func() (interface{}, error) { return "test", nil })
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("Expected ErrOpenState, got %v", err)
	}

	time.Sleep(150 * time.Millisecond)

	result, err := ExecuteWithBreaker(cb, func() (interface{}, error) { return "recovered", nil })
	if err != nil {
		t.Errorf("Unexpected error after recovery: %v", err)
	}
	if result != "recovered" {
		t.Errorf("Expected 'recovered', got %v", result)
	}

	if state := CircuitBreakerState(cb); state != "closed" {
		t.Errorf("Expected state=closed after recovery, got %s", state)
	}
}
