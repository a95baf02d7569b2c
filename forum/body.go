// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package forum

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
)

// requestBody produces the payload for one request. encode is called
// again for a retried request, so implementations must not consume
// their inputs.
type requestBody interface {
	encode() (*encodedBody, error)
}

type encodedBody struct {
	data        []byte
	contentType string
}

func (b *encodedBody) reader() io.ReadCloser {
	return io.NopCloser(bytes.NewReader(b.data))
}

// jsonBody sends a value as application/json.
type jsonBody struct {
	value any
}

func (b jsonBody) encode() (*encodedBody, error) {
	data, err := json.Marshal(b.value)
	if err != nil {
		return nil, err
	}
	return &encodedBody{data: data, contentType: "application/json"}, nil
}

// multipartBody sends files under a single form field. With
// sendEmpty set, an empty string value is sent when there are no
// files, which is how the profile endpoint is told "keep the picture".
type multipartBody struct {
	field     string
	files     []Upload
	sendEmpty bool
}

func (b multipartBody) encode() (*encodedBody, error) {
	var buffer bytes.Buffer
	writer := multipart.NewWriter(&buffer)

	if len(b.files) == 0 && b.sendEmpty {
		if err := writer.WriteField(b.field, ""); err != nil {
			return nil, err
		}
	}
	for _, upload := range b.files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, b.field, upload.Name))
		header.Set("Content-Type", upload.contentType())
		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(upload.Data); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return &encodedBody{data: buffer.Bytes(), contentType: writer.FormDataContentType()}, nil
}

// Upload is an image to attach to a post, profile, or message.
type Upload struct {
	// Name is the file name including its extension. The extension
	// decides whether the image is accepted (png, jpg, jpeg).
	Name string
	// ContentType is optional; it is sniffed from Data when empty.
	ContentType string
	Data        []byte
}

// UploadFromFile reads path into an Upload named after its base name.
func UploadFromFile(path string) (Upload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Upload{}, fmt.Errorf("forum: reading upload: %w", err)
	}
	return Upload{Name: filepath.Base(path), Data: data}, nil
}

// Extension returns the lowercased extension without the dot.
func (u Upload) Extension() string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(u.Name), "."))
}

func (u Upload) contentType() string {
	if u.ContentType != "" {
		return u.ContentType
	}
	return http.DetectContentType(u.Data)
}

// byteInts renders data the way the chat socket expects file bytes:
// a JSON array of numbers rather than base64.
func byteInts(data []byte) []int {
	ints := make([]int, len(data))
	for i, b := range data {
		ints[i] = int(b)
	}
	return ints
}
