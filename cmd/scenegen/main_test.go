package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mtzanidakis/scenegen/internal/config"
	"github.com/mtzanidakis/scenegen/internal/creative"
	"github.com/mtzanidakis/scenegen/internal/llm"
	"github.com/mtzanidakis/scenegen/internal/llm/llmtest"
	"github.com/mtzanidakis/scenegen/internal/natsbus"
	"github.com/mtzanidakis/scenegen/internal/pipeline"
	"github.com/mtzanidakis/scenegen/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const plannerJSON = `{"layouts": {
  "0.684": {"foreground prompt": "Mug & saucer", "subject layout": [{"type": "product", "center": [0.5, 0.5], "ratio": [0.4, 0.3]}]},
  "1": {"subject layout": [{"type": "product", "center": [0.5, 0.5], "ratio": [0.4, 0.4]}]},
  "0.667": {"subject layout": []},
  "0.75": {"subject layout": [{"type": "product", "center": [0.4, 0.6], "ratio": [0.3, 0.3]}]}
}}`

func scripted() *llmtest.Generator {
	return &llmtest.Generator{
		Responses: map[string]string{
			pipeline.ProductAnalyzer:    `{"product_features": "white mug", "use_case": "coffee", "product_mask": "mug body"}`,
			pipeline.TrendInsight:       `{"category": "drinkware", "popular_brands": [], "slogans": [], "tone": "cozy"}`,
			pipeline.MarketingCopy:      `{"logo": "MUGCO", "tagline": "Sip slow", "underlay": "Handmade"}`,
			pipeline.BackgroundDesigner: `{"background_caption": "Oak table.", "background_prompt": "oak table, morning light"}`,
			pipeline.GraphicElement:     `{"graphic_elements": [{"type": "tagline", "content": "Sip slow"}]}`,
			pipeline.AspectRatioPlanner: plannerJSON,
		},
	}
}

func input() pipeline.Input {
	return pipeline.Input{
		ProductName: "Mug",
		Image:       llm.Image{MIMEType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}, Width: 400, Height: 600},
	}
}

func TestNewOrchestratorRunsDefaultGraph(t *testing.T) {
	gen := scripted()
	orch, err := newOrchestrator(gen, config.GeminiConfig{Temperature: 0.3, MaxTokens: 500}, pipeline.Options{})
	require.NoError(t, err)

	run, err := orch.Run(context.Background(), input())
	require.NoError(t, err)
	assert.Equal(t, "completed", run.Status(nil))
	assert.Equal(t, 6, gen.TotalCalls())

	req, ok := gen.Request(pipeline.ProductAnalyzer)
	require.True(t, ok)
	assert.Equal(t, 0.3, req.Options.Temperature)
	assert.Equal(t, 500, req.Options.MaxTokens)

	scenes := run.State.FinalJSON()
	require.Len(t, scenes, 4)
	assert.Equal(t, creative.AspectRatios[0], scenes[0].AspectRatio)
}

func TestWriteScenesKeepsHTMLCharacters(t *testing.T) {
	orch, err := newOrchestrator(scripted(), config.GeminiConfig{}, pipeline.Options{})
	require.NoError(t, err)
	run, err := orch.Run(context.Background(), input())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeScenes(&buf, run.State))

	out := buf.String()
	assert.Contains(t, out, "Mug & saucer")
	assert.NotContains(t, out, `\u0026`)
	assert.Contains(t, out, "\n  {", "indented")

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Len(t, decoded, 4)
}

func TestWriteScenesEmptyOnFailure(t *testing.T) {
	gen := scripted()
	gen.Errors = map[string]error{pipeline.AspectRatioPlanner: fmt.Errorf("quota")}
	orch, err := newOrchestrator(gen, config.GeminiConfig{}, pipeline.Options{})
	require.NoError(t, err)

	run, err := orch.Run(context.Background(), input())
	require.Error(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeScenes(&buf, run.State))
	assert.Equal(t, "[]\n", buf.String())
}

func TestRunRecordsHistory(t *testing.T) {
	db, err := store.New(config.StoreConfig{Path: filepath.Join(t.TempDir(), "runs.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gen := scripted()
	gen.Errors = map[string]error{pipeline.TrendInsight: fmt.Errorf("timeout")}
	orch, err := newOrchestrator(gen, config.GeminiConfig{}, pipeline.Options{Recorder: db})
	require.NoError(t, err)

	run, err := orch.Run(context.Background(), input())
	require.NoError(t, err)

	var list bytes.Buffer
	require.NoError(t, showHistory(&list, db, nil))
	var runs []store.Run
	require.NoError(t, json.Unmarshal(list.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Equal(t, "degraded", runs[0].Status)
	assert.Equal(t, 4, runs[0].Scenes)

	var detail bytes.Buffer
	require.NoError(t, showHistory(&detail, db, []string{run.ID}))
	var got struct {
		ID     string           `json:"id"`
		Agents []store.AgentRun `json:"agents"`
	}
	require.NoError(t, json.Unmarshal(detail.Bytes(), &got))
	assert.Equal(t, run.ID, got.ID)
	assert.Len(t, got.Agents, 7)

	assert.Error(t, showHistory(&detail, db, []string{"missing"}))
}

func TestShowHistoryEmpty(t *testing.T) {
	db, err := store.New(config.StoreConfig{Path: filepath.Join(t.TempDir(), "runs.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	var buf bytes.Buffer
	require.NoError(t, showHistory(&buf, db, nil))
	assert.Equal(t, "[]\n", buf.String())
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatchPrintsRunEvents(t *testing.T) {
	client, closeBus, err := connectEvents(config.NATSConfig{Port: 0, DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(closeBus)

	watcher, err := natsbus.NewClientFromURL(client.ConnectedURL())
	require.NoError(t, err)
	t.Cleanup(watcher.Close)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() { done <- watchEvents(ctx, watcher, out) }()

	// Publish until the watcher is subscribed and has printed a ping.
	require.Eventually(t, func() bool {
		_ = client.PublishJSON(natsbus.TopicRunEvents("ping"), pipeline.Event{Type: "ping", RunID: "ping"})
		_ = client.Flush()
		return strings.Contains(out.String(), `"run_id":"ping"`)
	}, 5*time.Second, 50*time.Millisecond)

	orch, err := newOrchestrator(scripted(), config.GeminiConfig{}, pipeline.Options{Events: client})
	require.NoError(t, err)
	run, err := orch.Run(context.Background(), input())
	require.NoError(t, err)
	require.NoError(t, client.Flush())

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), `"type":"run_completed","run_id":"`+run.ID+`"`)
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, 7, strings.Count(out.String(), `"type":"agent_completed","run_id":"`+run.ID+`"`))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}
