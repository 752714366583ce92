package run

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/relex/frame-agent/base"
	"github.com/relex/frame-agent/defs"
	"github.com/relex/gotils/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControlAPI(t *testing.T) {
	service, sinkConfig := newTestService(t, "run_controlapi_test_")
	server := httptest.NewServer(NewControlHandler(logger.WithField("test", t.Name()), service))
	defer server.Close()
	client := NewClient(server.URL)
	ctx := context.Background()

	_, err := client.Status(ctx)
	assert.ErrorContains(t, err, "409")
	assert.ErrorContains(t, client.Terminate(ctx), base.ErrNotRunning.Error())

	require.NoError(t, client.Configure(ctx, ConfigureRequest{
		SourceAddress: "synthetic://32x24?fps=100&paced=true",
		StreamID:      "cam-9",
		ReturnFrame:   true,
	}))
	st, err := client.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateRunning, st.State)
	assert.Equal(t, StateRunning, service.Active().State())
	assert.Equal(t, "cam-9", st.StreamID)
	assert.Equal(t, "stream.cam-9.analytic.default", st.Topic)

	sink := sinkConfig.Sinks()[0]
	require.Eventually(t, func() bool { return sink.Len() > 0 }, defs.TestReadTimeout, 10*time.Millisecond)
	sink.mutex.Lock()
	assert.NotEmpty(t, sink.results[0].Frame.Image)
	sink.mutex.Unlock()

	require.NoError(t, client.Terminate(ctx))
	assert.Equal(t, StateTerminated, service.Active().State())
}

func TestControlAPIResponses(t *testing.T) {
	service, _ := newTestService(t, "run_controlapi_resp_test_")
	handler := NewControlHandler(logger.WithField("test", t.Name()), service)

	do := func(method string, path string, body string) (int, controlResponse) {
		req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		var resp controlResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		return rec.Code, resp
	}

	code, resp := do(http.MethodPut, "/config", `{"streamSource":`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.NotEmpty(t, resp.Error)

	code, _ = do(http.MethodPut, "/config", `{"streamSource":"synthetic://","unknown":1}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, resp = do(http.MethodPut, "/config", `{"streamId":"x"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, resp.Error, "SourceAddress")

	code, _ = do(http.MethodPut, "/config", `{"streamSource":"nothing://here"}`)
	assert.Equal(t, http.StatusServiceUnavailable, code)

	code, _ = do(http.MethodPost, "/kill", ``)
	assert.Equal(t, http.StatusConflict, code)

	code, resp = do(http.MethodPut, "/config", `{"streamSource":"synthetic://32x24?fps=50","streamId":"s"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, controlResponse{Code: 200}, resp)

	code, resp = do(http.MethodPost, "/kill", ``)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 200, resp.Code)
}

func TestStatusCodeOf(t *testing.T) {
	assert.Equal(t, http.StatusOK, statusCodeOf(nil))
	assert.Equal(t, http.StatusGatewayTimeout, statusCodeOf(context.DeadlineExceeded))
	assert.Equal(t, http.StatusConflict, statusCodeOf(base.ErrConfigurationConflict))
	assert.Equal(t, http.StatusBadGateway, statusCodeOf(base.ErrSinkFailure))
}

func TestLaunchControlListener(t *testing.T) {
	service, _ := newTestService(t, "run_controlapi_listener_test_")
	server, addr, err := LaunchControlListener(logger.WithField("test", t.Name()), "127.0.0.1:0", service)
	require.NoError(t, err)
	defer server.Shutdown(context.Background())

	_, err = NewClient(addr.String()).Status(context.Background())
	assert.ErrorContains(t, err, base.ErrNotRunning.Error())
}
