package loader

import (
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"os"
	"strings"
)

// emailContent is what an .eml file yields: the message body plus the
// headers we carry along as chunk metadata.
type emailContent struct {
	Body    string
	Subject string
	Sender  string
	Date    string
}

// readEmail parses an RFC 822 message file. For multipart messages the
// first text/plain part is taken as the body; otherwise the whole body is
// used.
func readEmail(path string) (*emailContent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening email file: %w", err)
	}
	defer f.Close()

	msg, err := mail.ReadMessage(f)
	if err != nil {
		return nil, fmt.Errorf("parsing email: %w", err)
	}

	content := &emailContent{
		Subject: decodeHeader(msg.Header.Get("Subject")),
		Sender:  decodeHeader(msg.Header.Get("From")),
		Date:    msg.Header.Get("Date"),
	}
	if content.Subject == "" {
		content.Subject = "No Subject"
	}
	if content.Sender == "" {
		content.Sender = "Unknown Sender"
	}
	if content.Date == "" {
		content.Date = "Unknown Date"
	}

	body, err := extractEmailBody(msg)
	if err != nil {
		return nil, err
	}
	content.Body = body
	return content, nil
}

func extractEmailBody(msg *mail.Message) (string, error) {
	contentType := msg.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		// Unparseable content type: fall back to reading as plain text.
		body, readErr := io.ReadAll(msg.Body)
		if readErr != nil {
			return "", fmt.Errorf("reading email body: %w", readErr)
		}
		return string(body), nil
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		return firstPlainTextPart(msg.Body, params["boundary"])
	}

	body, err := io.ReadAll(msg.Body)
	if err != nil {
		return "", fmt.Errorf("reading email body: %w", err)
	}
	return string(body), nil
}

// firstPlainTextPart walks the multipart body and returns the first
// text/plain part. An empty string is returned when no such part exists.
func firstPlainTextPart(r io.Reader, boundary string) (string, error) {
	if boundary == "" {
		return "", fmt.Errorf("multipart message without boundary")
	}

	mr := multipart.NewReader(r, boundary)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return "", nil
		}
		if err != nil {
			return "", fmt.Errorf("reading multipart body: %w", err)
		}

		mediaType, _, parseErr := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if parseErr == nil && mediaType == "text/plain" {
			content, readErr := io.ReadAll(part)
			part.Close()
			if readErr != nil {
				return "", fmt.Errorf("reading text part: %w", readErr)
			}
			return string(content), nil
		}
		part.Close()
	}
}

// decodeHeader decodes RFC 2047 encoded words, returning the raw header
// when decoding fails.
func decodeHeader(header string) string {
	if header == "" {
		return ""
	}
	dec := new(mime.WordDecoder)
	decoded, err := dec.DecodeHeader(header)
	if err != nil {
		return header
	}
	return decoded
}
