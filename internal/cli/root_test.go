package cli

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sandy01030103/gold-price-etl/internal/app"
	"github.com/Sandy01030103/gold-price-etl/internal/config"
)

func TestReportPrintsUnloggedErrors(t *testing.T) {
	var buf bytes.Buffer
	report(errors.New("at least one of --csv or --png must be provided"), &buf)
	assert.Equal(t, "at least one of --csv or --png must be provided\n", buf.String())
}

func TestReportSkipsLoggedRunFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	chdir(t, t.TempDir())
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Source.URL = srv.URL
	cfg.Source.Timeout = time.Second
	cfg.Database.Path = filepath.Join(t.TempDir(), "gold_prices.db")
	cfg.Logging.File = ""

	var logs bytes.Buffer
	runErr := app.NewApp(cfg, zerolog.New(&logs)).Run(context.Background())
	require.Error(t, runErr)
	assert.Contains(t, logs.String(), "fetch failed")

	var stderr bytes.Buffer
	report(runErr, &stderr)
	assert.Empty(t, stderr.String(), "run failure was already logged once")
}
