package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.RecordCommand("RETR", true, 10*time.Millisecond)
	c.RecordCommand("DELE", false, time.Millisecond)
	c.RecordTransfer("STOR", 100, time.Second)
	c.RecordTransfer("STOR", 50, time.Second)
	c.RecordConnection(true, "accepted")
	c.RecordConnection(false, "global_limit_reached")
	c.RecordAuthentication(true, "alice")
	c.RecordAuthentication(false, "alice")
	c.RecordAuthentication(false, "mallory")

	assert.Equal(t, 150.0, testutil.ToFloat64(c.transferBytes.WithLabelValues("STOR")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.connections.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.connections.WithLabelValues("global_limit_reached")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.logins.WithLabelValues("fail")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.commands))
}

func TestNewPanicsOnDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)
	c.RecordConnection(true, "accepted")

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `ftpjail_connection_total{reason="accepted"} 1`)
}
