package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

func (m model) View() string {
	switch m.screen {
	case screenLogin:
		return m.renderLogin()
	case screenSignup:
		return m.renderSignup()
	}

	if m.width == 0 {
		return "loading..."
	}

	bodyHeight := max(3, m.height-4)
	sidebar := lipgloss.NewStyle().
		Width(sidebarWidth).
		Height(bodyHeight).
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(lipgloss.Color("238")).
		Render(m.renderSidebar(bodyHeight))

	var main string
	if m.overlay != overlayNone {
		main = m.renderOverlay()
	} else {
		main = m.renderMain(bodyHeight)
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, main)
	return strings.Join([]string{m.renderHeader(), body, m.renderFooter()}, "\n")
}

func (m *model) renderHeader() string {
	left := titleStyle.Render("codechat")
	right := mutedStyle.Render(fmt.Sprintf("%s · model: %s", m.auth.User.Username, modelLabel(modelChoices[m.modelIdx])))
	gap := max(1, m.width-lipgloss.Width(left)-lipgloss.Width(right))
	return left + strings.Repeat(" ", gap) + right
}

func (m *model) renderFooter() string {
	help := "tab focus · enter send/open · n new chat · p new project · r rename · d delete · m model · R refresh · L logout · q quit"
	lines := []string{helpStyle.Render(truncateString(help, max(0, m.width)))}
	if m.status != "" {
		lines = append(lines, truncateString(m.status, max(0, m.width)))
	} else {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func (m *model) renderMain(height int) string {
	switch m.sel.kind {
	case selectedNothing:
		return m.renderWelcome(height)
	case selectedProjectHome:
		return m.renderProjectHome(height)
	default:
		return m.renderConversation(height)
	}
}

func (m *model) renderWelcome(height int) string {
	lines := []string{
		"",
		titleStyle.Render("  Welcome to CodeChat"),
		"",
		mutedStyle.Render("  Type a message below to start a new chat,"),
		mutedStyle.Render("  or pick one from the sidebar."),
		"",
		m.renderPromptArea(),
	}
	return strings.Join(padLines(lines, height)[:height], "\n")
}

func (m *model) renderProjectHome(height int) string {
	lines := []string{
		projectStyle.Render("  Project: " + m.sel.projectName),
		"",
		mutedStyle.Render("  Type a message to start a chat in this project."),
		"",
	}
	if len(m.projectSessions) == 0 {
		lines = append(lines, mutedStyle.Render("  No chats in this project yet."))
	} else {
		lines = append(lines, helpStyle.Render("  Chats:"))
		for _, sess := range m.projectSessions {
			lines = append(lines, "   · "+oneLine(sess.displayTitle()))
		}
	}
	lines = append(lines, "", m.renderPromptArea())
	return strings.Join(padLines(lines, height)[:height], "\n")
}

func (m *model) renderConversation(height int) string {
	header := titleStyle.Render(" " + oneLine(m.sel.session.displayTitle()))

	var pendingLine string
	if m.pendingSends[m.sel.session.id] {
		pendingLine = pendingStyle.Render(" " + m.spin.View() + "waiting for reply...")
	}

	parts := []string{header, m.convViewport.View()}
	if pendingLine != "" {
		parts = append(parts, pendingLine)
	}
	parts = append(parts, m.renderPromptArea())
	return strings.Join(padLines(parts, height)[:height], "\n")
}

func (m *model) renderPromptArea() string {
	return m.prompt.View()
}

// refreshTimelineViewport rebuilds the conversation viewport content for the
// active session and pins it to the bottom.
func (m *model) refreshTimelineViewport() {
	sess, ok := m.sel.isSession()
	if !ok || m.convViewport.Width == 0 {
		m.convViewport.SetContent("")
		return
	}
	m.convViewport.SetContent(m.renderTimeline(m.sessionMessages[sess.id]))
	m.convViewport.GotoBottom()
}

// renderTimeline formats a timeline in insertion order. Assistant bodies go
// through the markdown renderer; user messages are plain wrapped text with a
// delivery marker.
func (m *model) renderTimeline(timeline []chatMessage) string {
	if len(timeline) == 0 {
		return mutedStyle.Render("  No messages yet.")
	}
	width := max(20, m.convViewport.Width-2)

	var blocks []string
	for _, msg := range timeline {
		if msg.senderType == "user" {
			label := userMsgStyle.Render("You")
			switch msg.status {
			case deliveryPending:
				label += pendingStyle.Render(" (sending...)")
			case deliveryFailed:
				label += failedStyle.Render(" (failed to send)")
			}
			body := wordwrap.String(msg.content, width)
			blocks = append(blocks, label+"\n"+body)
			continue
		}

		label := aiMsgStyle.Render("Assistant")
		if msg.modelUsed != "" {
			label += mutedStyle.Render(" · " + modelLabel(msg.modelUsed))
		}
		blocks = append(blocks, label+"\n"+m.renderMarkdown(msg.content, width))
	}
	return strings.Join(blocks, "\n\n")
}

func (m *model) renderMarkdown(content string, width int) string {
	if m.renderer == nil {
		return wordwrap.String(content, width)
	}
	rendered, err := m.renderer.Render(content)
	if err != nil {
		return wordwrap.String(content, width)
	}
	return strings.TrimRight(rendered, "\n")
}

func (m *model) renderOverlay() string {
	var lines []string
	switch m.overlay {
	case overlayRename:
		lines = []string{
			titleStyle.Render("  Rename chat"),
			"",
			"  " + m.renameInput.View(),
			"",
			helpStyle.Render("  enter save · esc cancel"),
		}
	case overlayConfirmDeleteSession:
		title := fmt.Sprintf("Chat #%d", m.deleteSessID)
		if sess, ok := m.store.byID(m.deleteSessID); ok {
			title = sess.displayTitle()
		}
		lines = []string{
			errorStyle.Render("  Delete " + oneLine(title) + "?"),
			"",
			helpStyle.Render("  y delete · n cancel"),
		}
	case overlayConfirmDeleteProject:
		name := fmt.Sprintf("project #%d", m.deleteProjID)
		for _, p := range m.registry.list() {
			if p.id == m.deleteProjID {
				name = p.name
			}
		}
		lines = []string{
			errorStyle.Render("  Delete project " + name + " and all its chats?"),
			"",
			helpStyle.Render("  y delete · n cancel"),
		}
	case overlayNewProject:
		lines = []string{
			titleStyle.Render("  New project"),
			"",
			"  Name: " + m.projectForm.name.View(),
			"  Zip:  " + m.projectForm.zip.View(),
			"  Repo: " + m.projectForm.repo.View(),
			"",
			helpStyle.Render("  fill name plus zip path or repo url"),
			helpStyle.Render("  tab next field · enter create · esc cancel"),
		}
	}
	return strings.Join(lines, "\n")
}
