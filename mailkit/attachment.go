package mailkit

import (
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/plainq/sparkmail/errkit"
)

const (
	// maxAttachmentName is the provider limit of the attachment name in bytes.
	maxAttachmentName = 255

	attachmentNamePrefix = "file_"
	imageNamePrefix      = "image_"
)

// Attachment represents a file attached to the message or an inline image.
// Data holds base64 encoded content.
type Attachment struct {
	Type string `json:"type"`
	Name string `json:"name"`
	Data string `json:"data"`
}

// Content returns decoded attachment content.
func (a Attachment) Content() ([]byte, error) {
	content, err := base64.StdEncoding.DecodeString(a.Data)
	if err != nil {
		return nil, fmt.Errorf("decode attachment %q: %w", a.Name, err)
	}

	return content, nil
}

// AttachOption configures attached or embedded content.
type AttachOption func(o *attachOptions)

type attachOptions struct {
	fileName    string
	contentType string
}

// WithFileName sets the name of the attachment. For inline images
// the name is what the content refers to.
func WithFileName(name string) AttachOption { return func(o *attachOptions) { o.fileName = name } }

// WithContentType sets MIME type of the attachment instead of detecting it.
func WithContentType(contentType string) AttachOption {
	return func(o *attachOptions) { o.contentType = contentType }
}

func newAttachOptions(options []AttachOption) attachOptions {
	var o attachOptions

	for _, option := range options {
		option(&o)
	}

	return o
}

// Attachments returns the attachments of the message.
func (m *Message) Attachments() []Attachment { return slices.Clone(m.attachments) }

// Images returns inline images of the message.
func (m *Message) Images() []Attachment { return slices.Clone(m.images) }

// Attach attaches the file at path. The file base name is used as the
// attachment name unless WithFileName is given. Empty path is ignored.
func (m *Message) Attach(path string, options ...AttachOption) *Message {
	if path == "" {
		return m
	}

	content, o, err := readFile(path, options)
	if err != nil {
		m.setErr(err)
		return m
	}

	return m.AttachContent(content, WithFileName(o.fileName), WithContentType(o.contentType))
}

// AttachContent attaches content as a file. Unnamed attachments are named
// file_<n>, where n is the attachment index. Empty content is ignored.
func (m *Message) AttachContent(content []byte, options ...AttachOption) *Message {
	if len(content) == 0 {
		return m
	}

	o := newAttachOptions(options)
	if o.fileName == "" {
		o.fileName = attachmentNamePrefix + strconv.Itoa(len(m.attachments))
	}

	if o.contentType == "" {
		o.contentType = detectContentType(content)
	}

	if len(o.fileName) > maxAttachmentName {
		m.setErr(fmt.Errorf("%w: attachment name is %d bytes, limit is %d: %w",
			ErrFieldTooLong, len(o.fileName), maxAttachmentName, errkit.ErrValidation,
		))

		return m
	}

	m.attachments = append(m.attachments, Attachment{
		Type: mediaType(o.contentType),
		Name: o.fileName,
		Data: base64.StdEncoding.EncodeToString(content),
	})

	return m
}

// Embed adds the image file at path as an inline image and returns its
// content id. Non-image files are rejected with ErrNotImage.
// Empty path is ignored and yields an empty content id.
func (m *Message) Embed(path string, options ...AttachOption) (string, error) {
	if path == "" {
		return "", nil
	}

	content, o, err := readFile(path, options)
	if err != nil {
		return "", err
	}

	return m.EmbedContent(content, WithFileName(o.fileName), WithContentType(o.contentType))
}

// EmbedContent adds content as an inline image and returns its content id
// image_<n>, where n is the image index. The content id is also used as the
// image name unless WithFileName is given. Non-image content is rejected
// with ErrNotImage. Empty content is ignored and yields an empty content id.
func (m *Message) EmbedContent(content []byte, options ...AttachOption) (string, error) {
	if len(content) == 0 {
		return "", nil
	}

	o := newAttachOptions(options)
	if o.contentType == "" {
		o.contentType = detectContentType(content)
	}

	contentType := mediaType(o.contentType)
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("%w: content is %s: %w", ErrNotImage, contentType, errkit.ErrInvalidArgument)
	}

	cid := imageNamePrefix + strconv.Itoa(len(m.images))
	if o.fileName == "" {
		o.fileName = cid
	}

	if len(o.fileName) > maxAttachmentName {
		return "", fmt.Errorf("%w: image name is %d bytes, limit is %d: %w",
			ErrFieldTooLong, len(o.fileName), maxAttachmentName, errkit.ErrValidation,
		)
	}

	m.images = append(m.images, Attachment{
		Type: contentType,
		Name: o.fileName,
		Data: base64.StdEncoding.EncodeToString(content),
	})

	return cid, nil
}

// readFile reads the file at path and resolves its name
// and MIME type unless they are given in options.
func readFile(path string, options []AttachOption) ([]byte, attachOptions, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, attachOptions{}, fmt.Errorf("read attachment: %w", err)
	}

	o := newAttachOptions(options)
	if o.fileName == "" {
		o.fileName = filepath.Base(path)
	}

	if o.contentType == "" {
		o.contentType = mime.TypeByExtension(filepath.Ext(path))
	}

	if o.contentType == "" {
		o.contentType = detectContentType(content)
	}

	return content, o, nil
}

func detectContentType(content []byte) string { return http.DetectContentType(content) }

// mediaType strips parameters like charset from the MIME type.
func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.TrimSpace(contentType)
	}

	return mt
}
