// predictions board: what the page shows under the canvas
package display

import (
	"io"
	"strings"
	"sync"
	"text/template"

	"github.com/ds124wfegd/scribble-diffusion/internal/entity"
)

const loaderText = "generating..."

// Board keeps predictions keyed by id in the order they first arrived.
type Board struct {
	mu          sync.RWMutex
	host        string
	predictions map[string]*entity.Prediction
	order       []string
	shareIDs    map[string]string
	submissions int
	failed      int
}

func NewBoard(host string) *Board {
	return &Board{
		host:        strings.TrimRight(host, "/"),
		predictions: make(map[string]*entity.Prediction),
		shareIDs:    make(map[string]string),
	}
}

// Submit counts a new submission and returns the running total.
func (b *Board) Submit() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.submissions++
	return b.submissions
}

// Fail settles a submission that ended without a prediction, so the
// loader does not wait for it.
func (b *Board) Fail() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failed+len(b.predictions) < b.submissions {
		b.failed++
	}
}

func (b *Board) SubmissionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.submissions
}

// Upsert replaces the entry with the same id; other entries are untouched.
func (b *Board) Upsert(p *entity.Prediction) {
	if p == nil || p.ID == "" {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.predictions[p.ID]; !ok {
		b.order = append(b.order, p.ID)
	}
	cp := *p
	b.predictions[p.ID] = &cp
}

// SetShareID points the share link of a prediction at its archived uuid.
func (b *Board) SetShareID(predictionID, shareID string) {
	if predictionID == "" || shareID == "" {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.shareIDs[predictionID] = shareID
}

// View returns the predictions newest first.
func (b *Board) View() []*entity.Prediction {
	b.mu.RLock()
	defer b.mu.RUnlock()

	view := make([]*entity.Prediction, 0, len(b.order))
	for i := len(b.order) - 1; i >= 0; i-- {
		cp := *b.predictions[b.order[i]]
		view = append(view, &cp)
	}
	return view
}

// Loading is true while a submission has no prediction yet.
func (b *Board) Loading() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.submissions > len(b.predictions)+b.failed
}

func (b *Board) ShareURL(p *entity.Prediction) string {
	b.mu.RLock()
	id, ok := b.shareIDs[p.ID]
	b.mu.RUnlock()
	if !ok {
		id = p.ID
	}
	return b.host + "/scribbles/" + id
}

type entry struct {
	Input  string
	Output string
	Prompt string
	Status entity.Status
	Share  string
}

type boardView struct {
	Loading bool
	Loader  string
	Entries []entry
}

var boardTemplate = template.Must(template.New("board").Parse(
	`{{- if .Loading}}[ {{.Loader}} ]
{{end -}}
{{- range .Entries}}
  scribble: {{.Input}}
  output:   {{if .Output}}{{.Output}}{{else}}{{$.Loader}}{{end}}
  prompt:   "{{.Prompt}}" ({{.Status}})
  share:    {{.Share}}
{{end -}}
`))

// Render writes the board. Nothing is written before the first submission.
func (b *Board) Render(w io.Writer) error {
	if b.SubmissionCount() == 0 {
		return nil
	}

	view := boardView{Loading: b.Loading(), Loader: loaderText}
	for _, p := range b.View() {
		view.Entries = append(view.Entries, entry{
			Input:  p.Input.Image,
			Output: p.LatestOutput(),
			Prompt: p.Input.Prompt,
			Status: p.Status,
			Share:  b.ShareURL(p),
		})
	}
	return boardTemplate.Execute(w, view)
}
