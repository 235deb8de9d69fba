package tui

import (
	"context"
	"time"

	"ollamadash/internal/app"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbletea"
)

type tab int

const (
	tabModels tab = iota
	tabChat
)

// stateChangedMsg arrives whenever the coordinator or the chat session
// publishes new state; the views re-read their snapshots on receipt.
type stateChangedMsg struct{}

type spinnerTickMsg time.Time

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Model is the root bubbletea model: a top bar, the active tab, and a
// footer with key hints. All daemon work happens in tea.Cmd goroutines;
// the views only read published snapshots.
type Model struct {
	inv     *app.Inventory
	session *app.ChatSession
	theme   Theme

	tab    tab
	models modelsView
	chat   chatView

	width        int
	height       int
	spinnerFrame int
}

func New(inv *app.Inventory, session *app.ChatSession) *Model {
	theme := NewTheme()
	return &Model{
		inv:     inv,
		session: session,
		theme:   theme,
		models:  newModelsView(theme),
		chat:    newChatView(theme),
	}
}

// Run wires the core's observers to the bubbletea program and blocks until
// the user quits.
func Run(inv *app.Inventory, session *app.ChatSession) error {
	m := New(inv, session)
	p := tea.NewProgram(m, tea.WithAltScreen())

	inv.Subscribe(func() { p.Send(stateChangedMsg{}) })
	session.Subscribe(func() { p.Send(stateChangedMsg{}) })
	go inv.CheckConnection(context.Background())

	_, err := p.Run()
	return err
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinnerTick(), textarea.Blink)
}

func (m *Model) spinnerTick() tea.Cmd {
	return tea.Tick(120*time.Millisecond, func(t time.Time) tea.Msg {
		return spinnerTickMsg(t)
	})
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		contentHeight := m.height - 4
		m.models.resize(m.width, contentHeight)
		m.chat.resize(m.width, contentHeight)
		return m, nil

	case stateChangedMsg:
		m.models.sync(m.inv)
		m.chat.sync(m.session)
		return m, nil

	case spinnerTickMsg:
		m.spinnerFrame = (m.spinnerFrame + 1) % len(spinnerFrames)
		return m, m.spinnerTick()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.inv.Close()
			return m, tea.Quit
		case "tab":
			if !m.models.pulling() {
				if m.tab == tabModels {
					m.tab = tabChat
					m.chat.input.Focus()
				} else {
					m.tab = tabModels
					m.chat.input.Blur()
				}
				return m, nil
			}
		}
	}

	switch m.tab {
	case tabModels:
		return m.updateModels(msg)
	default:
		return m.updateChat(msg)
	}
}

func (m *Model) updateModels(msg tea.Msg) (tea.Model, tea.Cmd) {
	view, cmd, action := m.models.update(msg)
	m.models = view

	switch action.kind {
	case actionNone:
	case actionRefresh:
		return m, commandCmd(func(ctx context.Context) { m.inv.RefreshAll(ctx) })
	case actionLoad:
		name := action.model
		return m, commandCmd(func(ctx context.Context) { m.inv.LoadModel(ctx, name) })
	case actionUnload:
		name := action.model
		return m, commandCmd(func(ctx context.Context) { m.inv.UnloadModel(ctx, name) })
	case actionDelete:
		name := action.model
		return m, commandCmd(func(ctx context.Context) { m.inv.DeleteModel(ctx, name) })
	case actionPull:
		name := action.model
		return m, commandCmd(func(ctx context.Context) { m.inv.PullModel(ctx, name) })
	case actionChat:
		if selected, ok := m.models.selected(); ok {
			m.tab = tabChat
			m.chat.input.Focus()
			model := selected
			return m, commandCmd(func(ctx context.Context) {
				m.session.SelectModel(model)
				m.session.LoadHistory(model.Name)
			})
		}
	case actionQuit:
		m.inv.Close()
		return m, tea.Quit
	}
	return m, cmd
}

func (m *Model) updateChat(msg tea.Msg) (tea.Model, tea.Cmd) {
	view, cmd, action := m.chat.update(msg)
	m.chat = view

	switch action {
	case chatActionSend:
		text := m.chat.takeInput()
		return m, commandCmd(func(ctx context.Context) { m.session.Send(ctx, text) })
	case chatActionClear:
		return m, commandCmd(func(ctx context.Context) { m.session.ClearChat() })
	case chatActionBack:
		m.tab = tabModels
		m.chat.input.Blur()
		return m, nil
	}
	return m, cmd
}

// commandCmd runs a core operation off the UI loop. The operation publishes
// its own state changes; no message needs to come back.
func commandCmd(fn func(ctx context.Context)) tea.Cmd {
	return func() tea.Msg {
		fn(context.Background())
		return nil
	}
}

func (m *Model) View() string {
	if m.width == 0 {
		return "starting..."
	}

	top := m.renderTopBar()
	footer := m.renderFooter()

	var body string
	switch m.tab {
	case tabModels:
		body = m.models.render(m.spinner())
	default:
		body = m.chat.render(m.spinner())
	}
	return top + "\n" + body + "\n" + footer
}

func (m *Model) spinner() string {
	return m.theme.Spinner.Render(spinnerFrames[m.spinnerFrame])
}

func (m *Model) renderTopBar() string {
	title := m.theme.TopBarTitle.Render("ollamadash")
	status := m.theme.TopBarMeta.Render("daemon: unreachable")
	if m.inv.BackendRunning() {
		status = m.theme.BadgeRunning.Render("daemon: connected")
	}
	sel := ""
	if model := m.session.SelectedModel(); model != nil {
		sel = m.theme.TopBarMeta.Render("  chat: " + model.Name)
	}
	return m.theme.TopBar.Render(title + "  " + status + sel)
}

func (m *Model) renderFooter() string {
	if m.tab == tabModels {
		return m.theme.Footer.Render("enter chat · l load · u unload · d delete · p pull · r refresh · tab switch · ctrl+c quit")
	}
	return m.theme.Footer.Render("enter send · ctrl+l clear chat · esc models · ctrl+c quit")
}
