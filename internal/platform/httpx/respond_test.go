package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := map[error]int{
		fmt.Errorf("route: %w", ErrNotFound):     http.StatusNotFound,
		fmt.Errorf("stop: %w", ErrForbidden):     http.StatusForbidden,
		fmt.Errorf("status: %w", ErrConflict):    http.StatusConflict,
		fmt.Errorf("qty: %w", ErrValidation):     http.StatusBadRequest,
		fmt.Errorf("token: %w", ErrUnauthorized): http.StatusUnauthorized,
		fmt.Errorf("plain"):                      http.StatusInternalServerError,
	}
	for err, want := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, err)
		require.Equal(t, want, rec.Code, err.Error())
		require.Equal(t, want, StatusFor(err))
	}
}

type payload struct {
	JugsOut int    `json:"jugs_out" validate:"gte=0"`
	Name    string `json:"name" validate:"required"`
}

func TestDecodeAndValidate(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"jugs_out":-1}`))
	var p payload
	err := DecodeAndValidate(req, &p)
	require.ErrorIs(t, err, ErrValidation)

	rec := httptest.NewRecorder()
	WriteError(rec, err)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body ProblemDetail
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "gte", body.Fields["JugsOut"])
	require.Equal(t, "required", body.Fields["Name"])
}

func TestDecodeMalformed(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
	var p payload
	require.ErrorIs(t, DecodeAndValidate(req, &p), ErrValidation)
}

func TestPathID(t *testing.T) {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("routeID", "abc")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	_, err := PathID(req, "routeID")
	require.ErrorIs(t, err, ErrValidation)

	rctx.URLParams = chi.RouteParams{}
	rctx.URLParams.Add("routeID", "42")
	id, err := PathID(req, "routeID")
	require.NoError(t, err)
	require.Equal(t, int64(42), id)
}
