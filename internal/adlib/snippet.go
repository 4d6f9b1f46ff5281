package adlib

import (
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
)

const snippetLen = 200

// snippet renders the head of a response body for a log line. HTML bodies,
// typically a login or checkpoint page, are reduced to their text first.
func snippet(body []byte) string {
	text := string(body)
	if looksLikeHTML(text) {
		converter := md.NewConverter("", true, nil)
		if converted, err := converter.ConvertString(text); err == nil {
			text = converted
		}
	}

	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) > snippetLen {
		return string(runes[:snippetLen]) + "..."
	}
	return text
}

func looksLikeHTML(s string) bool {
	head := strings.ToLower(strings.TrimSpace(s))
	if len(head) > 512 {
		head = head[:512]
	}
	return strings.HasPrefix(head, "<!doctype html") ||
		strings.HasPrefix(head, "<html") ||
		strings.Contains(head, "<body") ||
		strings.Contains(head, "<head")
}
