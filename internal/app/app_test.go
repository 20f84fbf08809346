package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/article-matcher/constants"
	"github.com/joseph-ayodele/article-matcher/internal/common"
	"github.com/joseph-ayodele/article-matcher/internal/entity"
	"github.com/joseph-ayodele/article-matcher/internal/pipeline"
)

func testConfig(t *testing.T) *common.Config {
	t.Helper()
	return &common.Config{
		Database: common.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "matcher.db")},
		Server:   common.ServerConfig{HTTPAddr: ":0"},
		Matching: common.MatchingConfig{
			MinScore:            60,
			TrustScore:          85,
			AssistMinConfidence: 40,
			AssistTimeout:       2 * time.Second,
			SampleSize:          10,
			Workers:             3,
			MinContainment:      3,
		},
	}
}

func TestNewWiresPipeline(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(t.Context(), cfg, NewLogger(io.Discard, "text", "error"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	require.NoError(t, a.Store.CreateRecord(t.Context(), &entity.CatalogRecord{ArticleAGB: "BL-4590"}))

	res, err := a.Processor.Process(t.Context(), pipeline.Input{
		Name:      "invoice.txt",
		Data:      []byte("Товар BL-4590 комплект"),
		MediaType: constants.MediaTypePlain,
	}, a.Options())
	require.NoError(t, err)
	assert.Equal(t, 1, res.LinesMatched)
}

func TestOptionsFromConfig(t *testing.T) {
	a := &App{Config: testConfig(t)}
	opts := a.Options()
	assert.Equal(t, 60.0, opts.Match.MinScore)
	assert.Equal(t, 85.0, opts.Match.TrustScore)
	assert.Equal(t, 40.0, opts.Match.AssistMinConfidence)
	assert.Equal(t, 2*time.Second, opts.Match.AssistTimeout)
	assert.Equal(t, 10, opts.Match.SampleSize)
	assert.Equal(t, 3, opts.Workers)
	assert.True(t, opts.IncludeUnmatched)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, "json", "debug").Debug("app.test", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"app.test"`)

	buf.Reset()
	NewLogger(&buf, "text", "bogus").Debug("hidden")
	assert.Empty(t, buf.String())
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 2, ExitCode(fmt.Errorf("wrap: %w", common.ErrInvalidInput)))
	assert.Equal(t, 2, ExitCode(common.UnsupportedFormatError("x/y")))
	assert.Equal(t, 1, ExitCode(errors.New("boom")))
}
