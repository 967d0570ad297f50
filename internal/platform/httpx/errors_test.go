package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/concreta/concreta/internal/shared"
)

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("get: %w", shared.ErrNotFound), http.StatusNotFound},
		{shared.ErrInvalidInput, http.StatusBadRequest},
		{shared.ErrSequenceViolation, http.StatusConflict},
		{shared.ErrOrderClosed, http.StatusConflict},
		{shared.ErrVolumeOutOfRange, http.StatusUnprocessableEntity},
		{shared.ErrCashComplianceFlagged, http.StatusUnprocessableEntity},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		require.Equal(t, tc.status, rec.Code, tc.err.Error())
	}
}

func TestRespondErrorIncludesViolation(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, shared.Violation(shared.ErrVolumeOutOfRange, "volume_m3", "13", "(0, 12]"))

	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "volume_m3", body.Extensions["field"])
	require.Equal(t, "13", body.Extensions["value"])
	require.Equal(t, "(0, 12]", body.Extensions["bound"])
}

func TestInternalErrorHidesDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, errors.New("pq: password authentication failed"))

	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Empty(t, body.Detail)
}
