package ui

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStatusInfoJSONSerialization(t *testing.T) {
	info := StatusInfo{
		ProjectName:   "codesearch",
		TotalFiles:    100,
		TotalChunks:   500,
		LastIndexed:   time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC),
		MetadataSize:  1024 * 1024,
		Model:         "nomic-embed-text",
		Dimensions:    768,
		EmbedderState: "ready",
		WatcherStatus: "running",
	}

	data, err := json.Marshal(info)
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(data, &parsed))
	require.Equal(t, "codesearch", parsed["project_name"])
	require.Equal(t, float64(100), parsed["total_files"])
	require.Equal(t, "ready", parsed["embedder_state"])
}

func TestStatusRendererRenderIncludesCounts(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, true)

	require.NoError(t, r.Render(StatusInfo{
		ProjectName: "codesearch",
		TotalFiles:  12,
		TotalChunks: 84,
		Model:       "static",
		Dimensions:  256,
	}))

	out := buf.String()
	require.Contains(t, out, "Files:        12")
	require.Contains(t, out, "Chunks:       84")
	require.Contains(t, out, "static (256 dims)")
}

func TestStatusRendererRenderJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, true)
	require.NoError(t, r.RenderJSON(StatusInfo{ProjectName: "codesearch"}))

	var parsed StatusInfo
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
	require.Equal(t, "codesearch", parsed.ProjectName)
}

func TestFormatBytes(t *testing.T) {
	require.Equal(t, "512 B", FormatBytes(512))
	require.Equal(t, "1.0 KB", FormatBytes(1024))
	require.Equal(t, "1.0 MB", FormatBytes(1024*1024))
}
