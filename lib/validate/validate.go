// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package validate

import (
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Field names used as keys in Errors.
const (
	FieldUsername     = "username"
	FieldEmail        = "email"
	FieldPassword     = "password"
	FieldConfirmation = "confirmation"
	FieldOldPassword  = "old_password"
	FieldTopic        = "topic"
	FieldContent      = "content"
	FieldImages       = "images"
	FieldBio          = "bio"
	FieldPicture      = "picture"
	FieldMessage      = "message"
	FieldForm         = "form"
)

// Limits enforced before a form is submitted.
const (
	UsernameMin = 3
	UsernameMax = 20
	PasswordMin = 8
	PasswordMax = 20
	TopicMin    = 3
	TopicMax    = 200
	ContentMin  = 10
	ContentMax  = 800
	BioMax      = 200
)

// ImageExtensions are the upload formats the forum accepts.
var ImageExtensions = []string{"png", "jpg", "jpeg"}

// FieldError is one failed check.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string { return e.Message }

// Errors collects failed checks in the order they were found. Forms
// show the first one; the CLI reports all of them.
type Errors []FieldError

func (e *Errors) add(field, message string) {
	*e = append(*e, FieldError{Field: field, Message: message})
}

// Field returns the first message for field, or "".
func (e Errors) Field(field string) string {
	for _, fieldErr := range e {
		if fieldErr.Field == field {
			return fieldErr.Message
		}
	}
	return ""
}

// First returns the first message, or "" when the form is valid.
func (e Errors) First() string {
	if len(e) == 0 {
		return ""
	}
	return e[0].Message
}

// Err joins every failure into one error, or returns nil when valid.
// Each joined error is a *FieldError.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	joined := make([]error, len(e))
	for i := range e {
		joined[i] = &e[i]
	}
	return errors.Join(joined...)
}

// RegisterForm is the sign-up input.
type RegisterForm struct {
	Username     string
	Email        string
	Password     string
	Confirmation string
}

// Register checks a sign-up form. A missing field short-circuits the
// remaining checks.
func Register(form RegisterForm) Errors {
	var errs Errors
	if form.Username == "" || form.Email == "" || form.Password == "" || form.Confirmation == "" {
		errs.add(FieldForm, "Please fill all fields")
		return errs
	}
	checkUsername(&errs, form.Username)
	if !strings.Contains(form.Email, "@") || !strings.Contains(form.Email, ".") {
		errs.add(FieldEmail, "Please enter a valid email")
	}
	checkPassword(&errs, FieldPassword, "Password", form.Password)
	if form.Password != form.Confirmation {
		errs.add(FieldConfirmation, "Passwords must be the same")
	}
	return errs
}

// Login checks the sign-in form. The message deliberately does not say
// which field is missing.
func Login(email, password string) Errors {
	var errs Errors
	if strings.TrimSpace(email) == "" || password == "" {
		errs.add(FieldForm, "Wrong email or password")
	}
	return errs
}

// PostForm is the create/edit post input. Tags is the raw
// space-separated text; Images are file names or paths.
type PostForm struct {
	Topic   string
	Content string
	Tags    string
	Images  []string
}

// Post checks a post form. Length limits apply to the trimmed text.
func Post(form PostForm) Errors {
	var errs Errors
	if length := runeCount(form.Topic); length < TopicMin || length > TopicMax {
		errs.add(FieldTopic, "Topic must be between 3 and 200 characters.")
	}
	if length := runeCount(form.Content); length < ContentMin || length > ContentMax {
		errs.add(FieldContent, "Content must be between 10 and 800 characters.")
	}
	for _, image := range form.Images {
		if !IsImageName(image) {
			errs.add(FieldImages, "Only PNG, JPG, and JPEG formats are allowed.")
			break
		}
	}
	return errs
}

// ProfileForm is the profile edit input. Picture is a file name or
// path, empty to keep the current picture.
type ProfileForm struct {
	Username string
	Bio      string
	Picture  string
}

// Profile checks a profile edit form.
func Profile(form ProfileForm) Errors {
	var errs Errors
	checkUsername(&errs, form.Username)
	if utf8.RuneCountInString(form.Bio) > BioMax {
		errs.add(FieldBio, "Bio must be less than 200 characters")
	}
	if form.Picture != "" && !IsImageName(form.Picture) {
		errs.add(FieldPicture, "Only PNG, JPG, and JPEG formats are allowed.")
	}
	return errs
}

// ChangePassword checks the change-password form.
func ChangePassword(oldPassword, newPassword, confirmation string) Errors {
	var errs Errors
	if oldPassword == "" || newPassword == "" {
		errs.add(FieldForm, "Please fill all fields")
		return errs
	}
	checkPassword(&errs, FieldPassword, "New password", newPassword)
	if newPassword != confirmation {
		errs.add(FieldConfirmation, "Passwords must be the same")
	}
	if newPassword == oldPassword {
		errs.add(FieldPassword, "New password must differ from the old one")
	}
	return errs
}

// DeleteAccount checks the delete-account form.
func DeleteAccount(password string) Errors {
	var errs Errors
	if password == "" {
		errs.add(FieldPassword, "Please enter your password")
	}
	return errs
}

// Message checks a chat message: it needs text or an attachment.
func Message(content string, attachments int) Errors {
	var errs Errors
	if strings.TrimSpace(content) == "" && attachments == 0 {
		errs.add(FieldMessage, "Message is empty")
	}
	return errs
}

// Comment checks a comment before it is sent.
func Comment(content string) Errors {
	var errs Errors
	if strings.TrimSpace(content) == "" {
		errs.add(FieldContent, "Comment is empty")
	}
	return errs
}

// IsImageName reports whether name has an accepted image extension.
func IsImageName(name string) bool {
	extension := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	return slices.Contains(ImageExtensions, extension)
}

func checkUsername(errs *Errors, username string) {
	if length := utf8.RuneCountInString(username); length < UsernameMin || length > UsernameMax {
		errs.add(FieldUsername, "Username must be between 3 and 20 characters")
	}
}

func checkPassword(errs *Errors, field, label, password string) {
	if length := utf8.RuneCountInString(password); length < PasswordMin || length > PasswordMax {
		errs.add(field, label+" must be between 8 and 20 characters")
		return
	}
	var digit, upper, lower bool
	for _, r := range password {
		switch {
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		}
	}
	if !digit {
		errs.add(field, label+" must contain a number")
	}
	if !upper {
		errs.add(field, label+" must contain an uppercase letter")
	}
	if !lower {
		errs.add(field, label+" must contain a lowercase letter")
	}
}

func runeCount(text string) int {
	return utf8.RuneCountInString(strings.TrimSpace(text))
}
