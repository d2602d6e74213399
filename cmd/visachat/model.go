package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zhouzirui/visa-assistant/client/internal/model/chat"
	chatService "github.com/zhouzirui/visa-assistant/client/internal/service/chat"
)

var (
	headerStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("27")).Padding(0, 1)
	subtitleStyle   = lipgloss.NewStyle().Faint(true)
	clientStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33"))
	consultantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	helpStyle       = lipgloss.NewStyle().Faint(true)
)

const helpText = "enter send · ctrl+r retry · ctrl+l clear · /up N /down N /copy N · ctrl+c quit"

type snapshotMsg chatService.Snapshot

type updatesClosedMsg struct{}

type replyDoneMsg struct{}

type chatModel struct {
	ctx     context.Context
	conv    *chatService.Conversation
	updates <-chan chatService.Snapshot

	input  textinput.Model
	spin   spinner.Model
	snap   chatService.Snapshot
	status string
	width  int
}

func newChatModel(ctx context.Context, conv *chatService.Conversation, updates <-chan chatService.Snapshot) chatModel {
	in := textinput.New()
	in.Placeholder = "Type your message..."
	in.Prompt = "You> "
	in.Focus()
	in.Width = 60

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = consultantStyle

	return chatModel{
		ctx:     ctx,
		conv:    conv,
		updates: updates,
		input:   in,
		spin:    s,
		snap:    conv.Snapshot(),
	}
}

func (m chatModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spin.Tick, listen(m.updates))
}

func listen(updates <-chan chatService.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-updates
		if !ok {
			return updatesClosedMsg{}
		}
		return snapshotMsg(snap)
	}
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-len(m.input.Prompt)-2, 10)
		return m, nil

	case snapshotMsg:
		m.snap = chatService.Snapshot(msg)
		return m, listen(m.updates)

	case updatesClosedMsg, replyDoneMsg:
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "ctrl+r":
			m.status = ""
			if err := m.conv.Retry(); err != nil {
				m.status = err.Error()
			}
			m.syncInput()
			return m, nil
		case "ctrl+l":
			m.conv.Clear()
			m.status = ""
			m.syncInput()
			return m, nil
		case "enter":
			return m.submit()
		}
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.spin, cmd = m.spin.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// syncInput mirrors the conversation's input buffer into the text box after
// retry or clear rewrote it.
func (m *chatModel) syncInput() {
	m.snap = m.conv.Snapshot()
	m.input.SetValue(m.snap.Input)
	m.input.CursorEnd()
}

func (m chatModel) submit() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	if strings.HasPrefix(strings.TrimSpace(text), "/") {
		return m.command(strings.Fields(text))
	}

	m.status = ""
	m.conv.SetInput(text)
	exchange, err := m.conv.Start()
	if err != nil {
		if !errors.Is(err, chatService.ErrEmptyInput) {
			m.status = err.Error()
		}
		return m, nil
	}
	m.input.SetValue("")
	m.snap = m.conv.Snapshot()

	ctx := m.ctx
	return m, func() tea.Msg {
		exchange.Complete(ctx)
		return replyDoneMsg{}
	}
}

func (m chatModel) command(args []string) (tea.Model, tea.Cmd) {
	m.input.SetValue("")

	switch args[0] {
	case "/quit", "/exit":
		return m, tea.Quit
	case "/clear":
		m.conv.Clear()
		m.status = ""
		m.syncInput()
		return m, nil
	case "/retry":
		m.status = ""
		if err := m.conv.Retry(); err != nil {
			m.status = err.Error()
		}
		m.syncInput()
		return m, nil
	case "/up", "/down", "/copy":
	default:
		m.status = "unknown command " + args[0]
		return m, nil
	}

	if len(args) != 2 {
		m.status = "usage: " + args[0] + " N"
		return m, nil
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		m.status = "message number must be an integer"
		return m, nil
	}
	index := n - 1

	if args[0] == "/copy" {
		text, err := m.conv.Copy(index)
		if err != nil {
			m.status = err.Error()
			return m, nil
		}
		if err := clipboard.WriteAll(text); err == nil {
			m.status = fmt.Sprintf("message %d copied to clipboard", n)
			return m, nil
		}
		// No clipboard on this terminal; print it instead.
		m.status = fmt.Sprintf("message %d printed above for copying", n)
		return m, tea.Println(text)
	}

	value := chat.FeedbackUp
	if args[0] == "/down" {
		value = chat.FeedbackDown
	}
	got, err := m.conv.Rate(index, value)
	if err != nil {
		m.status = err.Error()
		return m, nil
	}
	m.snap = m.conv.Snapshot()
	m.status = fmt.Sprintf("message %d feedback: %s", n, got)
	return m, nil
}

func (m chatModel) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Visa AI Assistant") + "\n")
	b.WriteString(subtitleStyle.Render("Get help with your visa application questions") + "\n\n")

	if len(m.snap.Messages) == 0 {
		b.WriteString("Hello! I'm here to help you with your visa questions.\n")
		b.WriteString(subtitleStyle.Render("Ask me anything about visa applications, requirements, or processes.") + "\n\n")
	}

	for i, msg := range m.snap.Messages {
		label := clientStyle.Render(fmt.Sprintf("[%d] You:", i+1))
		if msg.Role == chat.RoleConsultant {
			label = consultantStyle.Render(fmt.Sprintf("[%d] Assistant:", i+1))
			switch m.snap.Feedback[i] {
			case chat.FeedbackUp:
				label += " 👍"
			case chat.FeedbackDown:
				label += " 👎"
			}
		}
		b.WriteString(label + " " + msg.Message + "\n\n")
	}

	if m.snap.Loading {
		b.WriteString(consultantStyle.Render("Assistant:") + " " + m.spin.View() + "Assistant is typing...\n\n")
	}
	if m.snap.Error != "" {
		b.WriteString(errorStyle.Render(m.snap.Error) + "\n")
	}
	if m.status != "" {
		b.WriteString(statusStyle.Render(m.status) + "\n")
	}

	b.WriteString(m.input.View() + "\n")
	b.WriteString(helpStyle.Render(helpText))
	return b.String()
}
