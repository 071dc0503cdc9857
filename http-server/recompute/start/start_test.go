package start

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"uph-engine/internal/service/recompute"
)

type MockRecomputer struct {
	mock.Mock
}

func (m *MockRecomputer) Recompute(windowDays *int) (recompute.JobHandle, error) {
	args := m.Called(windowDays)
	return args.Get(0).(recompute.JobHandle), args.Error(1)
}

func TestStartRecompute(t *testing.T) {
	log := slog.New(slog.DiscardHandler)
	window := 30

	tests := []struct {
		name       string
		url        string
		window     *int
		handle     recompute.JobHandle
		err        error
		wantCode   int
		wantStatus string
	}{
		{name: "all windows", url: "/api/uph/recompute", handle: "job-1", wantCode: http.StatusAccepted, wantStatus: "started"},
		{name: "single window", url: "/api/uph/recompute?window=30", window: &window, handle: "job-2", wantCode: http.StatusAccepted, wantStatus: "started"},
		{name: "in progress", url: "/api/uph/recompute", handle: "job-1", err: recompute.ErrRecomputeInProgress, wantCode: http.StatusConflict, wantStatus: "running"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := new(MockRecomputer)
			rec.On("Recompute", tt.window).Return(tt.handle, tt.err).Once()

			req := httptest.NewRequest(http.MethodPost, tt.url, nil)
			rr := httptest.NewRecorder()
			StartRecompute(log, rec).ServeHTTP(rr, req)

			require.Equal(t, tt.wantCode, rr.Code)

			var resp Response
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, tt.handle, resp.JobID)
			assert.Equal(t, tt.wantStatus, resp.Status)
			rec.AssertExpectations(t)
		})
	}
}

func TestStartRecompute_BadRequest(t *testing.T) {
	log := slog.New(slog.DiscardHandler)

	rec := new(MockRecomputer)
	req := httptest.NewRequest(http.MethodPost, "/api/uph/recompute?window=abc", nil)
	rr := httptest.NewRecorder()
	StartRecompute(log, rec).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rec.AssertNotCalled(t, "Recompute", mock.Anything)

	window := 14
	rec.On("Recompute", &window).Return(recompute.JobHandle(""), fmt.Errorf("%w: 14", recompute.ErrInvalidWindow)).Once()
	req = httptest.NewRequest(http.MethodPost, "/api/uph/recompute?window=14", nil)
	rr = httptest.NewRecorder()
	StartRecompute(log, rec).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
