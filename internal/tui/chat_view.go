package tui

import (
	"strings"

	"ollamadash/internal/app"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/bubbletea"
)

type chatAction int

const (
	chatActionNone chatAction = iota
	chatActionSend
	chatActionClear
	chatActionBack
)

// chatView renders the conversation log and the input box. Snapshots are
// copied from the session on every state change; the transcript re-renders
// lazily on the next sync.
type chatView struct {
	theme    Theme
	markdown *MarkdownRenderer

	messages []app.ChatMessage
	sending  bool
	errMsg   string
	model    string

	transcript viewport.Model
	input      textarea.Model

	width  int
	height int
}

func newChatView(theme Theme) chatView {
	ta := textarea.New()
	ta.Placeholder = "Type your message..."
	ta.CharLimit = 8000
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	return chatView{
		theme:      theme,
		markdown:   NewMarkdownRenderer(theme),
		transcript: viewport.New(80, 20),
		input:      ta,
	}
}

func (v *chatView) resize(width, height int) {
	v.width, v.height = width, height
	inputHeight := 5
	v.transcript.Width = width
	v.transcript.Height = height - inputHeight
	v.input.SetWidth(width - 4)
	v.refreshTranscript()
}

func (v *chatView) sync(session *app.ChatSession) {
	v.messages = session.Messages()
	v.sending = session.State() == app.ChatSending
	v.errMsg = session.ErrorMessage()
	v.model = ""
	if m := session.SelectedModel(); m != nil {
		v.model = m.Name
	}
	v.refreshTranscript()
	v.transcript.GotoBottom()
}

func (v *chatView) refreshTranscript() {
	if v.width == 0 {
		return
	}
	var b strings.Builder
	for _, msg := range v.messages {
		switch msg.Role {
		case "user":
			b.WriteString(v.theme.RoleYou.Render("You") + "\n")
			b.WriteString(msg.Content + "\n\n")
		case "assistant":
			b.WriteString(v.theme.RoleAI.Render(msg.ModelName) + "\n")
			b.WriteString(v.markdown.Render(msg.Content, v.width) + "\n\n")
		default:
			b.WriteString(v.theme.RoleSys.Render("system: "+msg.Content) + "\n\n")
		}
	}
	v.transcript.SetContent(b.String())
}

// takeInput empties the textarea and returns what it held.
func (v *chatView) takeInput() string {
	text := v.input.Value()
	v.input.Reset()
	return text
}

func (v chatView) update(msg tea.Msg) (chatView, tea.Cmd, chatAction) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			return v, nil, chatActionBack
		case "ctrl+l":
			return v, nil, chatActionClear
		case "enter":
			if strings.TrimSpace(v.input.Value()) != "" && !v.sending {
				return v, nil, chatActionSend
			}
			return v, nil, chatActionNone
		}
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	cmds = append(cmds, cmd)
	v.transcript, cmd = v.transcript.Update(msg)
	cmds = append(cmds, cmd)
	return v, tea.Batch(cmds...), chatActionNone
}

func (v chatView) render(spinner string) string {
	var b strings.Builder

	title := v.theme.PaneTitle.Render("Chat")
	if v.model != "" {
		title += v.theme.TopBarMeta.Render(" — " + v.model)
	}
	if v.sending {
		title += " " + spinner + v.theme.TopBarMeta.Render(" waiting for reply…")
	}
	b.WriteString(title + "\n")

	if v.errMsg != "" {
		b.WriteString(v.theme.ErrorBar.Render(v.errMsg) + "\n")
	}
	if v.model == "" {
		b.WriteString(v.theme.TopBarMeta.Render("select a model on the Models tab (enter) to start chatting") + "\n")
	}

	b.WriteString(v.transcript.View() + "\n")

	box := v.theme.InputBox
	if v.input.Focused() {
		box = v.theme.InputBoxF
	}
	b.WriteString(box.Width(v.width - 2).Render(v.input.View()))
	return b.String()
}
