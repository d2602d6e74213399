package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	model "github.com/zhouzirui/visa-assistant/client/internal/model/prompt"
	"github.com/zhouzirui/visa-assistant/client/pkg/assistantapi"
)

// BannerDuration is how long a success banner stays visible.
const BannerDuration = 3 * time.Second

const (
	ExportFilename    = "ai-prompt-backup.txt"
	ExportContentType = "text/plain"
)

const (
	LoadErrorText   = "Failed to load current prompt from server"
	SaveErrorText   = "Failed to save prompt. Please try again."
	ImportErrorText = "Failed to read file"

	SavedText    = "Prompt updated successfully!"
	ImportedText = "Prompt loaded from file"
)

var (
	ErrBusy          = errors.New("prompt request already in progress")
	ErrNotEditable   = errors.New("prompt is not editable while loading or saving")
	ErrNothingToSave = errors.New("no unsaved changes")
)

// Backend is the slice of the assistant API the prompt editor needs.
type Backend interface {
	GetPrompt(ctx context.Context) (*assistantapi.GetPromptResponse, error)
	UpdatePrompt(ctx context.Context, req assistantapi.UpdatePromptRequest) (*assistantapi.UpdatePromptResponse, error)
}

// Snapshot is a consistent copy of the editor state.
type Snapshot struct {
	Draft       string      `json:"draft"`
	Original    string      `json:"original"`
	Loading     bool        `json:"loading"`
	Saving      bool        `json:"saving"`
	HasChanges  bool        `json:"hasChanges"`
	CanSave     bool        `json:"canSave"`
	Error       string      `json:"error,omitempty"`
	Success     string      `json:"success,omitempty"`
	ShowPreview bool        `json:"showPreview"`
	Stats       model.Stats `json:"stats"`
}

// Export is a downloadable copy of the draft.
type Export struct {
	Filename    string
	ContentType string
	Body        []byte
}

type banner struct {
	text      string
	expiresAt time.Time
}

// Editor is the prompt admin view state machine:
// loading -> ready -> (editing) -> saving -> ready.
type Editor struct {
	backend Backend
	logger  *zap.SugaredLogger
	now     func() time.Time

	mu          sync.Mutex
	draft       string
	original    string
	loading     bool
	fetching    bool
	saving      bool
	errText     string
	success     banner
	showPreview bool
}

// EditorOption customises an Editor.
type EditorOption func(*Editor)

// WithClock overrides the time source used for banner expiry.
func WithClock(now func() time.Time) EditorOption {
	return func(e *Editor) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEditor returns an editor in the loading state; call Load to fetch the
// prompt.
func NewEditor(backend Backend, logger *zap.SugaredLogger, opts ...EditorOption) *Editor {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	e := &Editor{
		backend: backend,
		logger:  logger,
		now:     time.Now,
		loading: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load fetches the current prompt. On failure the draft is left untouched and
// a static error is shown; there is no automatic retry.
func (e *Editor) Load(ctx context.Context) error {
	e.mu.Lock()
	if e.saving || e.fetching {
		e.mu.Unlock()
		return ErrBusy
	}
	e.loading = true
	e.fetching = true
	e.errText = ""
	e.mu.Unlock()

	resp, err := e.backend.GetPrompt(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.loading = false
	e.fetching = false
	if err != nil {
		e.logger.Errorw("failed to load prompt", "error", err)
		e.errText = LoadErrorText
		return fmt.Errorf("load prompt: %w", err)
	}
	e.draft = resp.Prompt
	e.original = resp.Prompt
	return nil
}

// SetDraft replaces the locally edited text.
func (e *Editor) SetDraft(text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loading || e.saving {
		return ErrNotEditable
	}
	e.draft = text
	return nil
}

// Save sends the draft to the backend. It is only allowed when the draft
// differs from the last saved text and no request is in flight.
func (e *Editor) Save(ctx context.Context) error {
	e.mu.Lock()
	if !e.canSaveLocked() {
		busy := e.loading || e.saving || e.fetching
		e.mu.Unlock()
		if busy {
			return ErrBusy
		}
		return ErrNothingToSave
	}
	e.saving = true
	e.errText = ""
	e.success = banner{}
	text := e.draft
	e.mu.Unlock()

	_, err := e.backend.UpdatePrompt(ctx, assistantapi.UpdatePromptRequest{Prompt: text})

	e.mu.Lock()
	defer e.mu.Unlock()
	e.saving = false
	if err != nil {
		e.logger.Errorw("failed to save prompt", "error", err)
		e.errText = SaveErrorText
		return fmt.Errorf("save prompt: %w", err)
	}
	e.original = text
	e.success = banner{text: SavedText, expiresAt: e.now().Add(BannerDuration)}
	return nil
}

// Reset reverts the draft to the last saved text.
func (e *Editor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.draft = e.original
	e.errText = ""
	e.success = banner{}
}

// TogglePreview shows or hides the preview panel and reports the new state.
func (e *Editor) TogglePreview() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.showPreview = !e.showPreview
	return e.showPreview
}

// Export serialises the draft as a text file. Nothing is sent to the backend.
func (e *Editor) Export() Export {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Export{
		Filename:    ExportFilename,
		ContentType: ExportContentType,
		Body:        []byte(e.draft),
	}
}

// Import replaces the draft with the full contents of r. Nothing is sent to
// the backend.
func (e *Editor) Import(r io.Reader) error {
	e.mu.Lock()
	editable := !e.loading && !e.saving
	e.mu.Unlock()
	if !editable {
		return ErrNotEditable
	}

	content, err := io.ReadAll(r)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loading || e.saving {
		return ErrNotEditable
	}
	if err != nil {
		e.logger.Errorw("failed to read prompt file", "error", err)
		e.errText = ImportErrorText
		return fmt.Errorf("import prompt: %w", err)
	}
	e.draft = string(content)
	e.success = banner{text: ImportedText, expiresAt: e.now().Add(BannerDuration)}
	return nil
}

// Stats measures the current draft.
func (e *Editor) Stats() model.Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return model.Measure(e.draft, e.draft != e.original)
}

// Snapshot returns a copy of the editor state with expired banners hidden.
func (e *Editor) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	success := ""
	if e.success.text != "" && e.now().Before(e.success.expiresAt) {
		success = e.success.text
	}

	hasChanges := e.draft != e.original
	return Snapshot{
		Draft:       e.draft,
		Original:    e.original,
		Loading:     e.loading,
		Saving:      e.saving,
		HasChanges:  hasChanges,
		CanSave:     e.canSaveLocked(),
		Error:       e.errText,
		Success:     success,
		ShowPreview: e.showPreview,
		Stats:       model.Measure(e.draft, hasChanges),
	}
}

func (e *Editor) canSaveLocked() bool {
	return !e.saving && !e.loading && !e.fetching && e.draft != e.original
}
