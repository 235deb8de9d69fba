package tui

import (
	"fmt"
	"sort"
	"strings"

	"ollamadash/internal/app"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type actionKind int

const (
	actionNone actionKind = iota
	actionRefresh
	actionLoad
	actionUnload
	actionDelete
	actionPull
	actionChat
	actionQuit
)

type modelsAction struct {
	kind  actionKind
	model string
}

// modelsView renders the installed-model table, running badges, pull
// progress, and the error banner. It holds read-only snapshots copied from
// the coordinator on every state change.
type modelsView struct {
	theme Theme

	models   []app.Model
	running  map[string]bool
	progress map[string]string
	errMsg   string
	loading  bool
	daemonUp bool

	cursor    int
	pullInput textinput.Model
	pullOpen  bool

	width  int
	height int
}

func newModelsView(theme Theme) modelsView {
	ti := textinput.New()
	ti.Placeholder = "model to pull, e.g. mistral:7b"
	ti.CharLimit = 120
	return modelsView{
		theme:     theme,
		running:   map[string]bool{},
		progress:  map[string]string{},
		pullInput: ti,
	}
}

func (v modelsView) pulling() bool { return v.pullOpen }

func (v *modelsView) resize(width, height int) {
	v.width, v.height = width, height
	v.pullInput.Width = width - 10
}

func (v *modelsView) sync(inv *app.Inventory) {
	v.models = inv.Models()
	v.errMsg = inv.ErrorMessage()
	v.loading = inv.Loading()
	v.daemonUp = inv.BackendRunning()
	v.progress = inv.PullProgress()

	v.running = map[string]bool{}
	for _, r := range inv.RunningModels() {
		v.running[r.Name] = true
	}
	if v.cursor >= len(v.models) {
		v.cursor = len(v.models) - 1
	}
	if v.cursor < 0 {
		v.cursor = 0
	}
}

func (v modelsView) selected() (app.Model, bool) {
	if v.cursor < 0 || v.cursor >= len(v.models) {
		return app.Model{}, false
	}
	return v.models[v.cursor], true
}

func (v modelsView) update(msg tea.Msg) (modelsView, tea.Cmd, modelsAction) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return v, nil, modelsAction{}
	}

	if v.pullOpen {
		switch key.String() {
		case "esc":
			v.pullOpen = false
			v.pullInput.Blur()
			return v, nil, modelsAction{}
		case "enter":
			name := strings.TrimSpace(v.pullInput.Value())
			v.pullOpen = false
			v.pullInput.Blur()
			v.pullInput.SetValue("")
			if name == "" {
				return v, nil, modelsAction{}
			}
			return v, nil, modelsAction{kind: actionPull, model: name}
		}
		var cmd tea.Cmd
		v.pullInput, cmd = v.pullInput.Update(msg)
		return v, cmd, modelsAction{}
	}

	switch key.String() {
	case "up", "k":
		if v.cursor > 0 {
			v.cursor--
		}
	case "down", "j":
		if v.cursor < len(v.models)-1 {
			v.cursor++
		}
	case "r":
		return v, nil, modelsAction{kind: actionRefresh}
	case "p":
		v.pullOpen = true
		v.pullInput.Focus()
		return v, textinput.Blink, modelsAction{}
	case "enter":
		return v, nil, modelsAction{kind: actionChat}
	case "l":
		if m, ok := v.selected(); ok {
			return v, nil, modelsAction{kind: actionLoad, model: m.Name}
		}
	case "u":
		if m, ok := v.selected(); ok {
			return v, nil, modelsAction{kind: actionUnload, model: m.Name}
		}
	case "d":
		if m, ok := v.selected(); ok {
			return v, nil, modelsAction{kind: actionDelete, model: m.Name}
		}
	case "q":
		return v, nil, modelsAction{kind: actionQuit}
	}
	return v, nil, modelsAction{}
}

func (v modelsView) render(spinner string) string {
	var b strings.Builder

	if v.errMsg != "" {
		b.WriteString(v.theme.ErrorBar.Render(v.errMsg) + "\n\n")
	}

	title := v.theme.PaneTitle.Render(fmt.Sprintf("Models (%d)", len(v.models)))
	if v.loading {
		title += " " + spinner
	}
	b.WriteString(title + "\n")

	header := fmt.Sprintf("  %-34s %10s %-10s %-8s %s", "NAME", "SIZE", "FAMILY", "PARAMS", "STATUS")
	b.WriteString(v.theme.TableHeader.Render(header) + "\n")

	for i, m := range v.models {
		status := v.theme.BadgeStopped.Render("stopped")
		if v.running[m.Name] {
			status = v.theme.BadgeRunning.Render("running")
		}
		row := fmt.Sprintf("%-34s %10s %-10s %-8s ",
			truncate(m.Name, 34), app.FormatBytes(m.Size), m.Details.Family, m.Details.ParameterSize)
		if i == v.cursor {
			b.WriteString(v.theme.RowSelected.Render("▸ "+row) + status + "\n")
		} else {
			b.WriteString(v.theme.RowNormal.Render("  "+row) + status + "\n")
		}
	}
	if len(v.models) == 0 {
		b.WriteString(v.theme.TopBarMeta.Render("  no models installed") + "\n")
	}

	if len(v.progress) > 0 {
		b.WriteString("\n" + v.theme.PaneTitle.Render("Downloads") + "\n")
		names := make([]string, 0, len(v.progress))
		for name := range v.progress {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			b.WriteString("  " + name + ": " + v.theme.Progress.Render(v.progress[name]) + "\n")
		}
	}

	if v.pullOpen {
		box := v.theme.InputBoxF.Width(v.width - 4).Render("pull: " + v.pullInput.View())
		b.WriteString("\n" + box + "\n")
	}

	return lipgloss.NewStyle().Height(v.height).Render(b.String())
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 1 {
		return s[:max]
	}
	return s[:max-1] + "…"
}
