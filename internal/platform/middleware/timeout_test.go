package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestRequestTimeout_ContextHasDeadline(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	err := RequestTimeout(time.Second)(func(c echo.Context) error {
		if _, ok := c.Request().Context().Deadline(); !ok {
			t.Error("expected a deadline on the request context")
		}
		return nil
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequestTimeout_MapsDeadlineToGatewayTimeout(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	err := RequestTimeout(10 * time.Millisecond)(func(c echo.Context) error {
		<-c.Request().Context().Done()
		return fmt.Errorf("query: %w", c.Request().Context().Err())
	})(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %v", err)
	}
}

func TestRequestTimeout_PropagatesHandlerError(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	want := echo.NewHTTPError(http.StatusBadRequest, "bad")

	err := RequestTimeout(time.Second)(func(c echo.Context) error { return want })(c)
	if !errors.Is(err, want) {
		t.Errorf("expected handler error, got %v", err)
	}
}

func TestRequestTimeout_Disabled(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	err := RequestTimeout(0)(func(c echo.Context) error {
		if _, ok := c.Request().Context().Deadline(); ok {
			t.Error("expected no deadline when disabled")
		}
		return context.Canceled
	})(c)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("unexpected error %v", err)
	}
}
