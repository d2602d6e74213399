package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/visa-assistant/client/internal/service/prompt"
	"github.com/zhouzirui/visa-assistant/client/pkg/assistantapi"
)

type fakeBackend struct {
	prompt      string
	updates     int
	improveReq  assistantapi.ImproveAIRequest
	instruction string
	failGet     bool
}

func (f *fakeBackend) GetPrompt(context.Context) (*assistantapi.GetPromptResponse, error) {
	if f.failGet {
		return nil, errors.New("down")
	}
	return &assistantapi.GetPromptResponse{Prompt: f.prompt}, nil
}

func (f *fakeBackend) UpdatePrompt(_ context.Context, req assistantapi.UpdatePromptRequest) (*assistantapi.UpdatePromptResponse, error) {
	f.updates++
	f.prompt = req.Prompt
	return &assistantapi.UpdatePromptResponse{Message: "ok", Prompt: req.Prompt}, nil
}

func (f *fakeBackend) ImproveAI(_ context.Context, req assistantapi.ImproveAIRequest) (*assistantapi.ImproveAIResponse, error) {
	f.improveReq = req
	return &assistantapi.ImproveAIResponse{PredictedReply: "predicted", UpdatedPrompt: "improved"}, nil
}

func (f *fakeBackend) ImproveAIManually(_ context.Context, req assistantapi.ImproveAIManuallyRequest) (*assistantapi.ImproveAIManuallyResponse, error) {
	f.instruction = req.Instructions
	return &assistantapi.ImproveAIManuallyResponse{UpdatedPrompt: "instructed"}, nil
}

func runCmd(t *testing.T, backend *fakeBackend, opts options) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), backend, nil, opts, &out)
	return out.String(), err
}

func TestGet(t *testing.T) {
	out, err := runCmd(t, &fakeBackend{prompt: "current"}, options{cmd: "get"})
	require.NoError(t, err)
	assert.Equal(t, "current\n", out)
}

func TestSetSavesThroughEditor(t *testing.T) {
	backend := &fakeBackend{prompt: "old"}
	out, err := runCmd(t, backend, options{cmd: "set", text: "new prompt"})
	require.NoError(t, err)
	assert.Equal(t, "new prompt", backend.prompt)
	assert.Contains(t, out, prompt.SavedText)
	assert.Contains(t, out, "2 words")
}

func TestSetUnchangedSkipsBackend(t *testing.T) {
	backend := &fakeBackend{prompt: "same"}
	out, err := runCmd(t, backend, options{cmd: "set", text: "same"})
	require.NoError(t, err)
	assert.Zero(t, backend.updates)
	assert.Contains(t, out, "nothing to save")
}

func TestSetLoadFailure(t *testing.T) {
	_, err := runCmd(t, &fakeBackend{failGet: true}, options{cmd: "set", text: "x"})
	require.EqualError(t, err, prompt.LoadErrorText)
}

func TestExportThenImport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, prompt.ExportFilename)

	backend := &fakeBackend{prompt: "line one\nline two"}
	_, err := runCmd(t, backend, options{cmd: "export", out: path})
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", string(content))

	require.NoError(t, os.WriteFile(path, []byte("edited"), 0o644))
	_, err = runCmd(t, backend, options{cmd: "import", file: path})
	require.NoError(t, err)
	assert.Equal(t, "edited", backend.prompt)
}

func TestExportToStdout(t *testing.T) {
	out, err := runCmd(t, &fakeBackend{prompt: "body"}, options{cmd: "export", out: "-"})
	require.NoError(t, err)
	assert.Equal(t, "body", out)
}

func TestImprove(t *testing.T) {
	dir := t.TempDir()
	historyPath := filepath.Join(dir, "history.json")
	require.NoError(t, os.WriteFile(historyPath, []byte(`[{"role":"client","message":"hi"},{"role":"consultant","message":"hello"}]`), 0o644))

	backend := &fakeBackend{}
	out, err := runCmd(t, backend, options{cmd: "improve", client: "visa?", reply: "Yes.", history: historyPath})
	require.NoError(t, err)

	assert.Equal(t, "visa?", backend.improveReq.ClientSequence)
	assert.Equal(t, "Yes.", backend.improveReq.ConsultantReply)
	require.Len(t, backend.improveReq.ChatHistory, 2)
	assert.Equal(t, assistantapi.RoleConsultant, backend.improveReq.ChatHistory[1].Role)
	assert.Contains(t, out, "predicted")
	assert.Contains(t, out, "improved")
}

func TestInstruct(t *testing.T) {
	backend := &fakeBackend{}
	out, err := runCmd(t, backend, options{cmd: "instruct", instructions: "be brief"})
	require.NoError(t, err)
	assert.Equal(t, "be brief", backend.instruction)
	assert.Equal(t, "instructed\n", out)
}

func TestUsageErrors(t *testing.T) {
	for _, opts := range []options{
		{cmd: "bogus"},
		{cmd: "set"},
		{cmd: "import"},
		{cmd: "improve", client: "x"},
		{cmd: "instruct"},
	} {
		_, err := runCmd(t, &fakeBackend{}, opts)
		assert.ErrorIs(t, err, errUsage, opts.cmd)
	}
}
