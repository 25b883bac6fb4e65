package licenseclient

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/EternisAI/silo-license/internal/api/http/dto"
	"github.com/EternisAI/silo-license/internal/fingerprint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServer struct {
	*httptest.Server
	calls    atomic.Int32
	lastBody atomic.Value
}

func newFakeServer(t *testing.T, handler func(w http.ResponseWriter, req dto.ValidateRequest)) *fakeServer {
	t.Helper()
	fs := &fakeServer{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.calls.Add(1)
		if r.URL.Path != validatePath || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var req dto.ValidateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fs.lastBody.Store(req)
		handler(w, req)
	}))
	t.Cleanup(fs.Close)
	return fs
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func validHandler(w http.ResponseWriter, _ dto.ValidateRequest) {
	writeJSON(w, http.StatusOK, dto.ValidateResponse{Valid: true, Token: "signed-token", Features: []string{"export"}})
}

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func TestValidateSuccess(t *testing.T) {
	srv := newFakeServer(t, validHandler)
	c := New("key-1", srv.URL, WithFingerprinter(fingerprint.Static("hw-1")))

	valid, err := c.Validate(context.Background())
	require.NoError(t, err)
	assert.True(t, valid)
	assert.Equal(t, "signed-token", c.Token())
	assert.Equal(t, []string{"export"}, c.Features())

	req := srv.lastBody.Load().(dto.ValidateRequest)
	assert.Equal(t, "key-1", req.LicenseKey)
	require.NotNil(t, req.HardwareID)
	assert.Equal(t, "hw-1", *req.HardwareID)
}

func TestValidateOmitsEmptyHardwareID(t *testing.T) {
	srv := newFakeServer(t, validHandler)
	c := New("key-1", srv.URL, WithFingerprinter(fingerprint.Static("")))

	_, err := c.Validate(context.Background())
	require.NoError(t, err)

	req := srv.lastBody.Load().(dto.ValidateRequest)
	assert.Nil(t, req.HardwareID)
}

func TestValidateUsesCacheWithinFreshnessWindow(t *testing.T) {
	srv := newFakeServer(t, validHandler)
	clk := &clock{now: time.Now()}
	c := New("key-1", srv.URL, WithFingerprinter(fingerprint.Static("hw-1")), WithClock(clk.Now))

	valid, err := c.Validate(context.Background())
	require.NoError(t, err)
	require.True(t, valid)
	require.Equal(t, int32(1), srv.calls.Load())

	clk.now = clk.now.Add(time.Second)
	valid, err = c.Validate(context.Background())
	require.NoError(t, err)
	assert.True(t, valid)
	assert.Equal(t, int32(1), srv.calls.Load())

	clk.now = clk.now.Add(3598 * time.Second)
	valid, err = c.Validate(context.Background())
	require.NoError(t, err)
	assert.True(t, valid)
	assert.Equal(t, int32(1), srv.calls.Load())
}

func TestValidateRevalidatesAfterFreshnessWindow(t *testing.T) {
	srv := newFakeServer(t, validHandler)
	clk := &clock{now: time.Now()}
	c := New("key-1", srv.URL, WithFingerprinter(fingerprint.Static("hw-1")), WithClock(clk.Now))

	_, err := c.Validate(context.Background())
	require.NoError(t, err)

	clk.now = clk.now.Add(3601 * time.Second)
	valid, err := c.Validate(context.Background())
	require.NoError(t, err)
	assert.True(t, valid)
	assert.Equal(t, int32(2), srv.calls.Load())
}

func TestValidateCustomFreshness(t *testing.T) {
	srv := newFakeServer(t, validHandler)
	clk := &clock{now: time.Now()}
	c := New("key-1", srv.URL,
		WithFingerprinter(fingerprint.Static("hw-1")),
		WithClock(clk.Now),
		WithFreshness(time.Minute))

	_, err := c.Validate(context.Background())
	require.NoError(t, err)

	clk.now = clk.now.Add(61 * time.Second)
	_, err = c.Validate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), srv.calls.Load())
}

func TestInvalidate(t *testing.T) {
	srv := newFakeServer(t, validHandler)
	c := New("key-1", srv.URL, WithFingerprinter(fingerprint.Static("hw-1")))

	_, err := c.Validate(context.Background())
	require.NoError(t, err)

	c.Invalidate()
	assert.Empty(t, c.Token())

	_, err = c.Validate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), srv.calls.Load())
}

func TestValidateValidFalse(t *testing.T) {
	srv := newFakeServer(t, func(w http.ResponseWriter, _ dto.ValidateRequest) {
		writeJSON(w, http.StatusOK, dto.ValidateResponse{Valid: false})
	})
	c := New("key-1", srv.URL, WithFingerprinter(fingerprint.Static("hw-1")))

	valid, err := c.Validate(context.Background())
	require.NoError(t, err)
	assert.False(t, valid)
	assert.Empty(t, c.Token())

	// Nothing cached, so the next call goes to the server again.
	_, err = c.Validate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), srv.calls.Load())
}

func TestValidateUnauthorized(t *testing.T) {
	srv := newFakeServer(t, func(w http.ResponseWriter, _ dto.ValidateRequest) {
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Detail: "License has expired"})
	})
	c := New("key-1", srv.URL, WithFingerprinter(fingerprint.Static("hw-1")))

	valid, err := c.Validate(context.Background())
	assert.False(t, valid)
	require.ErrorIs(t, err, ErrLicenseInvalid)

	var invalid *InvalidError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, http.StatusUnauthorized, invalid.StatusCode)
	assert.Equal(t, "License has expired", invalid.Detail)
}

func TestValidateNonJSONErrorBody(t *testing.T) {
	srv := newFakeServer(t, func(w http.ResponseWriter, _ dto.ValidateRequest) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	})
	c := New("key-1", srv.URL, WithFingerprinter(fingerprint.Static("hw-1")))

	_, err := c.Validate(context.Background())
	var invalid *InvalidError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "upstream down", invalid.Detail)
}

func TestValidateMalformedSuccessBody(t *testing.T) {
	srv := newFakeServer(t, func(w http.ResponseWriter, _ dto.ValidateRequest) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("not json"))
	})
	c := New("key-1", srv.URL, WithFingerprinter(fingerprint.Static("hw-1")))

	_, err := c.Validate(context.Background())
	assert.ErrorIs(t, err, ErrLicenseInvalid)
}

func TestValidateServerUnreachable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	c := New("key-1", "http://"+addr, WithFingerprinter(fingerprint.Static("hw-1")))

	_, err = c.Validate(context.Background())
	assert.ErrorIs(t, err, ErrServerUnreachable)
}

func TestValidateTimeoutIsServerUnreachable(t *testing.T) {
	block := make(chan struct{})
	srv := newFakeServer(t, func(w http.ResponseWriter, _ dto.ValidateRequest) {
		<-block
	})
	defer close(block)

	c := New("key-1", srv.URL, WithFingerprinter(fingerprint.Static("hw-1")), WithTimeout(50*time.Millisecond))

	_, err := c.Validate(context.Background())
	assert.ErrorIs(t, err, ErrServerUnreachable)
}

func TestRunGatedRunsActionOnce(t *testing.T) {
	srv := newFakeServer(t, validHandler)
	c := New("key-1", srv.URL, WithFingerprinter(fingerprint.Static("hw-1")))

	var count int
	err := c.RunGated(context.Background(), func() error {
		count++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRunGatedReturnsActionError(t *testing.T) {
	srv := newFakeServer(t, validHandler)
	c := New("key-1", srv.URL, WithFingerprinter(fingerprint.Static("hw-1")))

	actionErr := errors.New("boom")
	err := c.RunGated(context.Background(), func() error { return actionErr })
	assert.ErrorIs(t, err, actionErr)
}

func TestRunGatedInvalidLicenseNeverRunsAction(t *testing.T) {
	srv := newFakeServer(t, func(w http.ResponseWriter, _ dto.ValidateRequest) {
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Detail: "Invalid license key"})
	})
	c := New("bad-key", srv.URL, WithFingerprinter(fingerprint.Static("hw-1")))

	var count int
	err := c.RunGated(context.Background(), func() error {
		count++
		return nil
	})
	assert.ErrorIs(t, err, ErrLicenseInvalid)
	assert.Equal(t, 0, count)
}

func TestRunGatedRejected(t *testing.T) {
	srv := newFakeServer(t, func(w http.ResponseWriter, _ dto.ValidateRequest) {
		writeJSON(w, http.StatusOK, dto.ValidateResponse{Valid: false})
	})
	c := New("key-1", srv.URL, WithFingerprinter(fingerprint.Static("hw-1")))

	var count int
	err := c.RunGated(context.Background(), func() error {
		count++
		return nil
	})
	assert.ErrorIs(t, err, ErrLicenseRejected)
	assert.Equal(t, 0, count)
}

func TestRunGatedUnreachableNeverRunsAction(t *testing.T) {
	c := New("key-1", "http://127.0.0.1:1", WithFingerprinter(fingerprint.Static("hw-1")))

	var count int
	err := c.RunGated(context.Background(), func() error {
		count++
		return nil
	})
	assert.ErrorIs(t, err, ErrServerUnreachable)
	assert.Equal(t, 0, count)
}

func TestNewTrimsTrailingSlash(t *testing.T) {
	srv := newFakeServer(t, validHandler)
	c := New("key-1", srv.URL+"/", WithFingerprinter(fingerprint.Static("hw-1")))

	valid, err := c.Validate(context.Background())
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestWithTimeoutLeavesSharedClientUntouched(t *testing.T) {
	before := http.DefaultClient.Timeout

	c := New("key-1", "http://localhost", WithHTTPClient(http.DefaultClient), WithTimeout(5*time.Millisecond))

	assert.Equal(t, before, http.DefaultClient.Timeout)
	assert.NotSame(t, http.DefaultClient, c.httpClient)
	assert.Equal(t, 5*time.Millisecond, c.httpClient.Timeout)
}

func TestWithTimeoutAppliesInAnyOrder(t *testing.T) {
	custom := &http.Client{}

	c := New("key-1", "http://localhost", WithTimeout(time.Millisecond), WithHTTPClient(custom))

	assert.Equal(t, time.Millisecond, c.httpClient.Timeout)
	assert.Zero(t, custom.Timeout)
}

func TestDefaultTimeout(t *testing.T) {
	c := New("key-1", "http://localhost")
	assert.Equal(t, DefaultTimeout, c.httpClient.Timeout)
}

func TestWithHTTPClientNilKeepsDefault(t *testing.T) {
	srv := newFakeServer(t, validHandler)
	c := New("key-1", srv.URL, WithFingerprinter(fingerprint.Static("hw-1")), WithHTTPClient(nil))

	valid, err := c.Validate(context.Background())
	require.NoError(t, err)
	assert.True(t, valid)
	assert.Equal(t, DefaultTimeout, c.httpClient.Timeout)
}
