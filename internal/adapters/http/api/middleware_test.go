package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestClassify(t *testing.T) {
	Convey("Failing statuses map to the response error codes", t, func() {
		cases := []struct {
			status   int
			kind     string
			severity string
		}{
			{http.StatusBadRequest, "bad_request", "medium"},
			{http.StatusRequestEntityTooLarge, "bad_request", "medium"},
			{http.StatusNotFound, "not_found", "medium"},
			{http.StatusInternalServerError, "internal_error", "high"},
			{http.StatusServiceUnavailable, "unavailable", "high"},
		}
		for _, c := range cases {
			kind, severity := classify(c.status)
			So(kind, ShouldEqual, c.kind)
			So(severity, ShouldEqual, c.severity)
		}
	})
}

func TestMetricsMiddleware(t *testing.T) {
	Convey("Given a wrapped handler that fails", t, func() {
		h := MetricsMiddleware(nil, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}, "test")

		Convey("Then the status passes through unchanged", func() {
			w := httptest.NewRecorder()
			h(w, httptest.NewRequest(http.MethodGet, "/test", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusTeapot)
		})
	})

	Convey("Given a handler that never writes a header", t, func() {
		h := MetricsMiddleware(nil, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("ok"))
		}, "test")

		Convey("Then the request counts as OK", func() {
			w := httptest.NewRecorder()
			h(w, httptest.NewRequest(http.MethodGet, "/test", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldEqual, "ok")
		})
	})
}
