// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package forumui

import (
	"context"
	"net/http"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/agora-forum/agora/forum"
	"github.com/agora-forum/agora/lib/validate"
)

type signedInMsg struct {
	envelope
	session *forum.Session
	user    *forum.User
	err     error
}

// formField is one labelled input of the login or registration form.
type formField struct {
	label string
	key   string
	input textinput.Model
}

func newFormField(label, key, placeholder string, secret bool) formField {
	input := textinput.New()
	input.Placeholder = placeholder
	input.Prompt = ""
	input.CharLimit = 100
	if secret {
		input.EchoMode = textinput.EchoPassword
		input.EchoCharacter = '•'
	}
	return formField{label: label, key: key, input: input}
}

// loginScreen signs in, or registers an account and then signs in.
type loginScreen struct {
	register bool
	fields   []formField
	focus    int
	errs     validate.Errors
	busy     bool
}

func newLoginScreen(model *Model) *loginScreen {
	s := &loginScreen{}
	s.setMode(false)
	return s
}

// setMode rebuilds the form, keeping the email and password typed so
// far.
func (s *loginScreen) setMode(register bool) tea.Cmd {
	email, password := s.value(validate.FieldEmail), s.value(validate.FieldPassword)
	s.register = register
	s.errs = nil
	if register {
		s.fields = []formField{
			newFormField("Username", validate.FieldUsername, "3 to 20 characters", false),
			newFormField("Email", validate.FieldEmail, "you@example.com", false),
			newFormField("Password", validate.FieldPassword, "8 to 20 characters, a digit, upper and lower case", true),
			newFormField("Repeat password", validate.FieldConfirmation, "", true),
		}
	} else {
		s.fields = []formField{
			newFormField("Email", validate.FieldEmail, "you@example.com", false),
			newFormField("Password", validate.FieldPassword, "", true),
		}
	}
	for index := range s.fields {
		switch s.fields[index].key {
		case validate.FieldEmail:
			s.fields[index].input.SetValue(email)
		case validate.FieldPassword:
			s.fields[index].input.SetValue(password)
		}
	}
	return s.setFocus(0)
}

func (s *loginScreen) value(field string) string {
	for _, entry := range s.fields {
		if entry.key == field {
			return entry.input.Value()
		}
	}
	return ""
}

func (s *loginScreen) setFocus(index int) tea.Cmd {
	s.focus = (index + len(s.fields)) % len(s.fields)
	var cmd tea.Cmd
	for position := range s.fields {
		if position == s.focus {
			cmd = s.fields[position].input.Focus()
		} else {
			s.fields[position].input.Blur()
		}
	}
	return cmd
}

func (s *loginScreen) title() string {
	if s.register {
		return "Register"
	}
	return "Log in"
}

func (s *loginScreen) help() string {
	if s.register {
		return "Tab next  Enter submit  C-t log in instead  Esc cancel"
	}
	return "Tab next  Enter submit  C-t register instead  Esc cancel"
}

func (s *loginScreen) typing() bool { return true }
func (s *loginScreen) close()       {}

func (s *loginScreen) init(model *Model) tea.Cmd { return nil }

func (s *loginScreen) update(model *Model, message tea.Msg) tea.Cmd {
	switch message := message.(type) {
	case signedInMsg:
		s.busy = false
		if message.err != nil {
			return model.warn(loginFailure(message.err))
		}
		return model.signIn(message.session, message.user)

	case tea.KeyMsg:
		keys := model.keys
		switch {
		case key.Matches(message, keys.Cancel):
			model.pop()
			return nil
		case key.Matches(message, keys.SwitchForm):
			return s.setMode(!s.register)
		case key.Matches(message, keys.NextField), message.Type == tea.KeyDown:
			return s.setFocus(s.focus + 1)
		case key.Matches(message, keys.PrevField), message.Type == tea.KeyUp:
			return s.setFocus(s.focus - 1)
		case message.Type == tea.KeyEnter, key.Matches(message, keys.Submit):
			if s.focus < len(s.fields)-1 && s.fields[s.focus].input.Value() != "" && message.Type == tea.KeyEnter {
				return s.setFocus(s.focus + 1)
			}
			return s.submit(model)
		}
		var cmd tea.Cmd
		s.fields[s.focus].input, cmd = s.fields[s.focus].input.Update(message)
		return cmd
	}
	return nil
}

func (s *loginScreen) submit(model *Model) tea.Cmd {
	if s.busy {
		return nil
	}
	email := strings.TrimSpace(s.value(validate.FieldEmail))
	password := s.value(validate.FieldPassword)
	username := strings.TrimSpace(s.value(validate.FieldUsername))
	if s.register {
		s.errs = validate.Register(validate.RegisterForm{
			Username:     username,
			Email:        email,
			Password:     password,
			Confirmation: s.value(validate.FieldConfirmation),
		})
	} else {
		s.errs = validate.Login(email, password)
	}
	if len(s.errs) > 0 {
		return model.warn(s.errs.First())
	}

	s.busy = true
	client, ctx, register := model.client, model.ctx, s.register
	return func() tea.Msg {
		session, user, err := signIn(ctx, client, register, username, email, password)
		return signedInMsg{envelope: envelope{s}, session: session, user: user, err: err}
	}
}

// signIn optionally registers, then logs in and fetches the profile.
func signIn(ctx context.Context, client *forum.Client, register bool, username, email, password string) (*forum.Session, *forum.User, error) {
	if register {
		if _, err := client.Register(ctx, username, email, password); err != nil {
			return nil, nil, err
		}
	}
	session, err := client.Login(ctx, email, password)
	if err != nil {
		return nil, nil, err
	}
	user, err := session.Me(ctx)
	if err != nil {
		return nil, nil, err
	}
	return session, user, nil
}

// loginFailure words a failed sign-in. Rejected credentials never say
// which of the two was wrong.
func loginFailure(err error) string {
	if forum.IsUnauthorized(err) || forum.IsNotFound(err) || forum.IsStatus(err, http.StatusBadRequest) && !isConflict(err) {
		return "Wrong email or password"
	}
	return describeError(err)
}

// isConflict reports a registration rejected because the username or
// email is taken; the server's own detail says which.
func isConflict(err error) bool {
	return forum.IsStatus(err, http.StatusConflict) || strings.Contains(strings.ToLower(describeError(err)), "already")
}

func (s *loginScreen) render(model *Model, width, height int) string {
	theme := model.theme
	label := lipgloss.NewStyle().Foreground(theme.FaintText)
	active := lipgloss.NewStyle().Bold(true).Foreground(theme.FocusAccent)
	errorStyle := lipgloss.NewStyle().Foreground(theme.ErrorText)

	var lines []string
	lines = append(lines, lipgloss.NewStyle().Bold(true).Foreground(theme.HeaderForeground).Render(s.title()), "")
	for index, field := range s.fields {
		style := label
		if index == s.focus {
			style = active
		}
		heading := style.Render(field.label)
		if message := s.errs.Field(field.key); message != "" {
			heading += "  " + errorStyle.Render(message)
		}
		lines = append(lines, heading, field.input.View(), "")
	}
	if message := s.errs.Field(validate.FieldForm); message != "" {
		lines = append(lines, errorStyle.Render(message))
	}
	if s.busy {
		lines = append(lines, label.Render("Signing in…"))
	}

	form := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.BorderColor).
		Padding(0, 2).
		Width(min(60, max(width-4, 20))).
		Render(strings.Join(lines, "\n"))
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, form)
}
