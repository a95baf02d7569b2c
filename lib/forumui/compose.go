// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package forumui

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/agora-forum/agora/forum"
	"github.com/agora-forum/agora/lib/cache"
	"github.com/agora-forum/agora/lib/tui"
	"github.com/agora-forum/agora/lib/validate"
)

// Composer fields in focus order.
const (
	fieldTopic = iota
	fieldContent
	fieldTags
	fieldImages
)

type draftLoadedMsg struct {
	envelope
	draft cache.Draft
}

type postSavedMsg struct {
	envelope
	post *forum.Post
	err  error
}

// composeScreen writes a new post or edits one. Leaving with Esc keeps
// the text as a draft; publishing removes the draft.
type composeScreen struct {
	original *forum.Post
	topic    textinput.Model
	tags     textinput.Model
	images   textinput.Model
	content  tui.Editor
	focus    int
	errs     validate.Errors
	saving   bool
	touched  bool
}

func newComposeScreen(model *Model, post *forum.Post) *composeScreen {
	topic := textinput.New()
	topic.Placeholder = "What is it about?"
	topic.CharLimit = validate.TopicMax
	topic.Prompt = ""
	topic.Focus()

	tags := textinput.New()
	tags.Placeholder = "space separated, e.g. go tui"
	tags.Prompt = ""

	images := textinput.New()
	images.Placeholder = "paths of png/jpg files, space separated"
	images.Prompt = ""

	s := &composeScreen{
		topic:   topic,
		tags:    tags,
		images:  images,
		content: tui.NewEditor(validate.ContentMax),
	}
	if post != nil {
		edited := *post
		s.original = &edited
		s.topic.SetValue(post.Topic)
		s.content.SetValue(post.Content)
		s.tags.SetValue(forum.JoinTags(post.Tags))
	}
	return s
}

// draftName keys the draft: one for new posts, one per edited post.
func (s *composeScreen) draftName() string {
	if s.original != nil {
		return fmt.Sprintf("tui-post-%d", s.original.ID)
	}
	return "tui-new-post"
}

func (s *composeScreen) title() string {
	if s.original != nil {
		return "Edit post"
	}
	return "New post"
}

func (s *composeScreen) help() string {
	return "Tab next field  C-s publish  Esc save draft and close"
}

func (s *composeScreen) typing() bool { return true }
func (s *composeScreen) close()       {}

func (s *composeScreen) init(model *Model) tea.Cmd {
	drafts := model.config.Drafts
	if drafts == nil {
		return nil
	}
	ctx, name, logger := model.ctx, s.draftName(), model.logger
	return func() tea.Msg {
		draft, err := drafts.Draft(ctx, name)
		if err != nil {
			if !errors.Is(err, cache.ErrDraftNotFound) {
				logger.Warn("draft not loaded", "draft", name, "error", err)
			}
			return nil
		}
		return draftLoadedMsg{envelope: envelope{s}, draft: draft}
	}
}

func (s *composeScreen) fieldCount() int {
	if s.original != nil {
		return fieldTags + 1
	}
	return fieldImages + 1
}

func (s *composeScreen) setFocus(field int) tea.Cmd {
	s.focus = (field + s.fieldCount()) % s.fieldCount()
	s.topic.Blur()
	s.tags.Blur()
	s.images.Blur()
	switch s.focus {
	case fieldTopic:
		return s.topic.Focus()
	case fieldTags:
		return s.tags.Focus()
	case fieldImages:
		return s.images.Focus()
	}
	return nil
}

func (s *composeScreen) form() validate.PostForm {
	return validate.PostForm{
		Topic:   strings.TrimSpace(s.topic.Value()),
		Content: strings.TrimSpace(s.content.Value()),
		Tags:    s.tags.Value(),
		Images:  strings.Fields(s.images.Value()),
	}
}

func (s *composeScreen) draft() cache.Draft {
	form := s.form()
	draft := cache.Draft{
		Name:    s.draftName(),
		Topic:   form.Topic,
		Content: form.Content,
		Tags:    forum.SplitTags(form.Tags),
		Images:  form.Images,
	}
	if s.original != nil {
		draft.PostID = s.original.ID
	}
	return draft
}

func (s *composeScreen) update(model *Model, message tea.Msg) tea.Cmd {
	switch message := message.(type) {
	case draftLoadedMsg:
		if s.touched {
			return nil
		}
		draft := message.draft
		s.topic.SetValue(draft.Topic)
		s.content.SetValue(draft.Content)
		s.tags.SetValue(strings.Join(draft.Tags, " "))
		s.images.SetValue(strings.Join(draft.Images, " "))
		return model.notify("Restored draft from %s", draft.UpdatedAt.Local().Format("Jan 2 15:04"))

	case postSavedMsg:
		s.saving = false
		if errors.Is(message.err, forum.ErrNothingChanged) {
			return model.notify("Nothing changed")
		}
		if message.err != nil {
			return model.fail(message.err)
		}
		return s.finish(model, message.post)

	case tea.KeyMsg:
		return s.updateKeys(model, message)
	}
	return nil
}

func (s *composeScreen) updateKeys(model *Model, message tea.KeyMsg) tea.Cmd {
	keys := model.keys
	switch {
	case key.Matches(message, keys.Cancel):
		cmd := s.keepDraft(model)
		model.pop()
		return cmd
	case key.Matches(message, keys.Submit):
		return s.submit(model)
	case key.Matches(message, keys.NextField):
		return s.setFocus(s.focus + 1)
	case key.Matches(message, keys.PrevField):
		return s.setFocus(s.focus - 1)
	case message.Type == tea.KeyEnter && s.focus != fieldContent:
		return s.setFocus(s.focus + 1)
	}

	s.touched = true
	var cmd tea.Cmd
	switch s.focus {
	case fieldTopic:
		s.topic, cmd = s.topic.Update(message)
	case fieldContent:
		s.content.Update(message)
	case fieldTags:
		s.tags, cmd = s.tags.Update(message)
	case fieldImages:
		s.images, cmd = s.images.Update(message)
	}
	return cmd
}

// changed reports whether the form differs from what it started with.
func (s *composeScreen) changed() bool {
	draft := s.draft()
	if s.original == nil {
		return !draft.Empty()
	}
	return draft.Topic != s.original.Topic || draft.Content != s.original.Content ||
		!slices.Equal(draft.Tags, s.original.Tags)
}

// keepDraft saves the form when it holds unpublished changes.
func (s *composeScreen) keepDraft(model *Model) tea.Cmd {
	drafts := model.config.Drafts
	if drafts == nil || !s.changed() {
		return nil
	}
	ctx, draft, logger := model.ctx, s.draft(), model.logger
	return func() tea.Msg {
		if _, err := drafts.SaveDraft(ctx, draft); err != nil {
			logger.Warn("draft not saved", "draft", draft.Name, "error", err)
			return logRecordMsg{Summary: "Draft not saved: " + err.Error(), Level: slog.LevelError}
		}
		return logRecordMsg{Summary: "Draft saved", Level: slog.LevelInfo}
	}
}

func (s *composeScreen) submit(model *Model) tea.Cmd {
	if s.saving {
		return nil
	}
	form := s.form()
	s.errs = validate.Post(form)
	if len(s.errs) > 0 {
		return model.warn(s.errs.First())
	}
	session, ctx := model.session, model.ctx
	if session == nil {
		cmd, _ := model.needSession("publish")
		return cmd
	}
	s.saving = true
	tags := forum.SplitTags(form.Tags)

	if s.original != nil {
		original := *s.original
		return func() tea.Msg {
			edit := forum.PostEdit{Topic: form.Topic, Content: form.Content, Tags: tags}
			err := session.EditPost(ctx, &original, edit)
			if err != nil {
				return postSavedMsg{envelope: envelope{s}, err: err}
			}
			original.Topic, original.Content, original.Tags = edit.Topic, edit.Content, edit.Tags
			return postSavedMsg{envelope: envelope{s}, post: &original}
		}
	}
	return func() tea.Msg {
		uploads := make([]forum.Upload, 0, len(form.Images))
		for _, path := range form.Images {
			upload, err := forum.UploadFromFile(path)
			if err != nil {
				return postSavedMsg{envelope: envelope{s}, err: err}
			}
			uploads = append(uploads, upload)
		}
		created, err := session.CreatePost(ctx, forum.NewPost{
			Topic:   form.Topic,
			Content: form.Content,
			Tags:    tags,
			Files:   uploads,
		})
		return postSavedMsg{envelope: envelope{s}, post: created, err: err}
	}
}

// finish closes the composer after a successful publish, dropping the
// draft and showing the result.
func (s *composeScreen) finish(model *Model, post *forum.Post) tea.Cmd {
	var cmds []tea.Cmd
	if drafts := model.config.Drafts; drafts != nil {
		ctx, name, logger := model.ctx, s.draftName(), model.logger
		cmds = append(cmds, func() tea.Msg {
			if err := drafts.DeleteDraft(ctx, name); err != nil && !errors.Is(err, cache.ErrDraftNotFound) {
				logger.Warn("draft not removed", "draft", name, "error", err)
			}
			return nil
		})
	}
	model.pop()
	if s.original != nil {
		model.postChanged(*post)
		return tea.Batch(append(cmds, model.notify("Post updated"))...)
	}
	if feed, ok := model.stack[0].(*feedScreen); ok {
		cmds = append(cmds, feed.posts.reset(model))
	}
	return tea.Batch(append(cmds, model.notify("Post published"))...)
}

func (s *composeScreen) render(model *Model, width, height int) string {
	theme := model.theme
	label := lipgloss.NewStyle().Foreground(theme.FaintText)
	active := lipgloss.NewStyle().Bold(true).Foreground(theme.FocusAccent)
	errorStyle := lipgloss.NewStyle().Foreground(theme.ErrorText)

	heading := func(field int, name, key string) string {
		style := label
		if s.focus == field {
			style = active
		}
		line := style.Render(name)
		if message := s.errs.Field(key); message != "" {
			line += "  " + errorStyle.Render(message)
		}
		return line
	}

	lines := []string{
		heading(fieldTopic, "Topic", validate.FieldTopic),
		s.topic.View(),
		"",
		heading(fieldContent, fmt.Sprintf("Content (%d/%d)", s.content.Len(), validate.ContentMax), validate.FieldContent),
	}
	footer := []string{
		"",
		heading(fieldTags, "Tags", "tags"),
		s.tags.View(),
	}
	if s.original == nil {
		footer = append(footer, "", heading(fieldImages, "Images", validate.FieldImages), s.images.View())
	}
	if s.saving {
		footer = append(footer, "", label.Render("Publishing…"))
	}

	editorHeight := max(height-len(lines)-len(footer)-2, 3)
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.BorderColor).
		Width(max(width-2, 10))
	if s.focus == fieldContent {
		box = box.BorderForeground(theme.FocusAccent)
	}
	editor := box.Render(strings.Join(s.content.Render(theme, max(width-2, 10), editorHeight, s.focus == fieldContent), "\n"))

	return strings.Join(lines, "\n") + "\n" + editor + "\n" + strings.Join(footer, "\n")
}
