package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/cprwiz/internal/authoring"
	"github.com/ShayCichocki/cprwiz/internal/draftcache"
	"github.com/ShayCichocki/cprwiz/internal/llm"
	"github.com/ShayCichocki/cprwiz/internal/wizard"
	"github.com/ShayCichocki/cprwiz/pkg/models"
)

// Service is the part of the authoring core the wizard drives.
type Service interface {
	Load(ctx context.Context, sessionID string) (*authoring.Document, error)
	ValidateSection(ctx context.Context, sessionID string, kind models.SectionKind, draft models.Draft) (*models.Verdict, error)
	LockSection(ctx context.Context, sessionID string, kind models.SectionKind, draft models.Draft) ([]models.SectionRecord, error)
	Commit(ctx context.Context, sessionID string) (*models.Session, error)
	LoadDraft(ctx context.Context, sessionID string) (*draftcache.Entry, error)
	SaveDraft(ctx context.Context, e *draftcache.Entry) error
}

var _ Service = (*authoring.Service)(nil)

// requestTimeout bounds one service call made from the wizard.
const requestTimeout = 2 * time.Minute

// LoadedMsg carries a freshly loaded session.
type LoadedMsg struct {
	Doc   *authoring.Document
	Draft *draftcache.Entry
	Err   error
}

// VerdictMsg carries the result of a validation.
type VerdictMsg struct {
	Kind    models.SectionKind
	Digest  string
	Verdict *models.Verdict
	Err     error
}

// LockedMsg reports the outcome of a lock.
type LockedMsg struct {
	Kind models.SectionKind
	Err  error
}

// CommittedMsg reports the outcome of a commit.
type CommittedMsg struct {
	Err error
}

// App is the wizard model.
type App struct {
	svc       Service
	sessionID string

	doc     *authoring.Document
	drafts  *draftcache.Entry
	verdict *models.Verdict
	// verdictDigest identifies the draft verdict was produced for.
	verdictDigest string
	busy          bool
	fatal         error

	header  *Header
	input   *InputField
	results *VerdictView
	footer  *Footer
	spinner spinner.Model

	width  int
	height int
}

// NewApp creates the wizard for one session.
func NewApp(svc Service, sessionID string) *App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &App{
		svc:       svc,
		sessionID: sessionID,
		busy:      true,
		header:    NewHeader(),
		input:     NewInputField(),
		results:   NewVerdictView(),
		footer:    NewFooter(),
		spinner:   sp,
		width:     80,
		height:    24,
	}
}

// NewProgram creates a bubbletea program running the wizard.
func NewProgram(svc Service, sessionID string) (*tea.Program, error) {
	if sessionID == "" {
		return nil, errors.New("session id required")
	}
	return tea.NewProgram(NewApp(svc, sessionID), tea.WithAltScreen()), nil
}

// Init loads the session.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, a.load())
}

// Update handles messages.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.header.SetWidth(msg.Width)
		a.input.SetWidth(msg.Width)
		a.results.SetWidth(msg.Width)
		a.footer.SetWidth(msg.Width)
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case LoadedMsg:
		a.busy = false
		if msg.Err != nil {
			a.fatal = msg.Err
			return a, nil
		}
		a.loaded(msg.Doc, msg.Draft)
		return a, nil

	case VerdictMsg:
		a.busy = false
		if msg.Err != nil {
			a.footer.SetMessage(describe(msg.Err), false)
			return a, nil
		}
		a.verdict, a.verdictDigest = msg.Verdict, msg.Digest
		if msg.Verdict.Valid {
			a.footer.SetMessage("Passed. Press ctrl+l to lock "+msg.Kind.Title()+".", true)
		} else {
			a.footer.SetMessage("Not ready yet. Revise and validate again.", false)
		}
		return a, nil

	case LockedMsg:
		if msg.Err != nil {
			a.busy = false
			a.footer.SetMessage(describe(msg.Err), false)
			return a, nil
		}
		a.footer.SetMessage(msg.Kind.Title()+" locked.", true)
		return a, a.load()

	case CommittedMsg:
		if msg.Err != nil {
			a.busy = false
			a.footer.SetMessage(describe(msg.Err), false)
			return a, nil
		}
		a.footer.SetMessage("Committed. Your CPR is complete.", true)
		return a, a.load()

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return a, tea.Quit
	case "esc":
		return a, a.saveAndQuit()
	}
	if a.busy || a.doc == nil {
		return a, nil
	}

	phase := a.doc.Progress.Phase
	switch msg.String() {
	case "ctrl+s":
		if phase != wizard.PhaseInProgress {
			return a, nil
		}
		return a, a.validate()
	case "ctrl+l":
		if phase != wizard.PhaseInProgress {
			return a, nil
		}
		return a, a.lock()
	case "ctrl+k":
		if phase != wizard.PhaseReadyToCommit {
			a.footer.SetMessage("Lock every section before committing.", false)
			return a, nil
		}
		a.busy = true
		return a, a.commit()
	}

	if phase != wizard.PhaseInProgress {
		return a, nil
	}
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

// loaded switches the editor to the current section.
func (a *App) loaded(doc *authoring.Document, drafts *draftcache.Entry) {
	prev := a.input.Kind()
	a.doc, a.drafts = doc, drafts

	kind := doc.Progress.Current
	if kind == "" {
		a.input.Blur()
		if doc.Progress.Phase == wizard.PhaseCommitted {
			a.footer.SetDone(true)
		}
		return
	}
	if kind == prev {
		return
	}

	a.verdict, a.verdictDigest = nil, ""
	a.input.Load(kind, a.resumeDraft(kind))
	a.input.Focus()
}

// resumeDraft picks the cached draft of kind, falling back to the last
// saved unlocked content.
func (a *App) resumeDraft(kind models.SectionKind) models.Draft {
	if a.drafts != nil {
		if d, ok := a.drafts.Drafts[kind]; ok {
			return d
		}
	}
	switch kind {
	case models.SectionContext:
		if a.doc.Context != nil {
			return models.Draft{Text: a.doc.Context.Content}
		}
	case models.SectionPurpose:
		if a.doc.Purpose != nil {
			return models.Draft{Text: a.doc.Purpose.Content}
		}
	case models.SectionResults:
		items := make([]models.ResultDraft, 0, len(a.doc.Results))
		for _, rec := range a.doc.Results {
			items = append(items, rec.ResultDraft())
		}
		return models.Draft{Results: items}
	}
	return models.Draft{}
}

func (a *App) load() tea.Cmd {
	svc, id := a.svc, a.sessionID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		doc, err := svc.Load(ctx, id)
		if err != nil {
			return LoadedMsg{Err: err}
		}
		drafts, err := svc.LoadDraft(ctx, id)
		return LoadedMsg{Doc: doc, Draft: drafts, Err: err}
	}
}

func (a *App) validate() tea.Cmd {
	kind := a.input.Kind()
	draft, err := a.input.Draft()
	if err != nil {
		a.footer.SetMessage(err.Error(), false)
		return nil
	}
	a.busy = true
	a.footer.SetMessage("Validating "+kind.Title()+"...", true)

	svc, id := a.svc, a.sessionID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		v, err := svc.ValidateSection(ctx, id, kind, draft)
		return VerdictMsg{Kind: kind, Digest: draft.Digest(kind), Verdict: v, Err: err}
	}
}

func (a *App) lock() tea.Cmd {
	kind := a.input.Kind()
	draft, err := a.input.Draft()
	if err != nil {
		a.footer.SetMessage(err.Error(), false)
		return nil
	}
	if a.verdict == nil || !a.verdict.Valid || a.verdictDigest != draft.Digest(kind) {
		a.footer.SetMessage("Validate this draft before locking it.", false)
		return nil
	}
	a.busy = true

	svc, id := a.svc, a.sessionID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		_, err := svc.LockSection(ctx, id, kind, draft)
		return LockedMsg{Kind: kind, Err: err}
	}
}

func (a *App) commit() tea.Cmd {
	svc, id := a.svc, a.sessionID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		_, err := svc.Commit(ctx, id)
		return CommittedMsg{Err: err}
	}
}

// saveAndQuit stores the open draft so the author can resume later.
func (a *App) saveAndQuit() tea.Cmd {
	if a.doc == nil || a.doc.Progress.Current == "" {
		return tea.Quit
	}
	kind := a.input.Kind()
	draft, err := a.input.Draft()
	if err != nil {
		return tea.Quit
	}
	e := &draftcache.Entry{SessionID: a.sessionID, Drafts: map[models.SectionKind]models.Draft{}, Step: kind}
	if a.drafts != nil {
		for k, d := range a.drafts.Drafts {
			e.Drafts[k] = d
		}
	}
	e.Drafts[kind] = draft

	svc := a.svc
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		// Best effort: the draft only helps resuming.
		_ = svc.SaveDraft(ctx, e)
		return tea.QuitMsg{}
	}
}

// View renders the wizard.
func (a *App) View() string {
	if a.fatal != nil {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("196")).
			Render(fmt.Sprintf("Cannot open session %s: %v\n\nPress esc to quit.", a.sessionID, a.fatal))
	}
	if a.doc == nil {
		return a.spinner.View() + " Loading session..."
	}

	var sb strings.Builder
	sb.WriteString(a.header.View(a.doc))
	sb.WriteString("\n")

	switch a.doc.Progress.Phase {
	case wizard.PhaseCommitted:
		sb.WriteString(summary(a.doc))
	case wizard.PhaseReadyToCommit:
		sb.WriteString(summary(a.doc))
		sb.WriteString("\nEvery section is locked. Press ctrl+k to commit.\n")
	default:
		kind := a.input.Kind()
		sb.WriteString(lipgloss.NewStyle().Bold(true).Render(kind.Title()))
		sb.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Render("  " + placeholder(kind)))
		sb.WriteString("\n")
		sb.WriteString(a.input.View())
		sb.WriteString("\n")
		sb.WriteString(a.results.View(a.verdict))
	}

	sb.WriteString("\n")
	if a.busy {
		sb.WriteString(a.spinner.View() + " ")
	}
	sb.WriteString(a.footer.View(a.doc.Progress.Phase == wizard.PhaseReadyToCommit))
	return sb.String()
}

// summary renders the locked document.
func summary(doc *authoring.Document) string {
	label := lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(10)
	var sb strings.Builder
	if doc.Context != nil {
		sb.WriteString(label.Render("Context") + doc.Context.Content + "\n")
	}
	if doc.Purpose != nil {
		sb.WriteString(label.Render("Purpose") + doc.Purpose.Content + "\n")
	}
	for i, r := range doc.Results {
		name := ""
		if i == 0 {
			name = "Results"
		}
		line := r.Content
		if r.CompletionDate != nil {
			line += " (" + r.CompletionDate.String() + ")"
		}
		sb.WriteString(label.Render(name) + "• " + line + "\n")
	}
	return sb.String()
}

// describe turns a service error into a footer message.
func describe(err error) string {
	var input *authoring.InputError
	var conflict *authoring.ConflictError
	switch {
	case errors.As(err, &input):
		return input.Error()
	case errors.As(err, &conflict):
		return conflict.Reason + ". Reloading may help."
	case errors.Is(err, authoring.ErrNotFound):
		return "session not found"
	case errors.Is(err, llm.ErrUpstream):
		return "Validation is unavailable right now, please try again."
	default:
		return err.Error()
	}
}
