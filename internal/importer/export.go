package importer

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/net/html"
)

// Message is one archived announcement.
type Message struct {
	ID       string `json:"id"`
	AuthorID string `json:"author_id"`
	Author   string `json:"author"`
	Content  string `json:"content"`
}

// ParseHTMLExport reads a chat channel exported as HTML. Each element with
// a data-message-id attribute is a message; continuation messages inherit
// the author of the message before them.
func ParseHTMLExport(r io.Reader) ([]Message, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse export: %w", err)
	}

	var (
		out        []Message
		lastAuthor string
		lastID     string
	)

	var walk func(n *html.Node, cur *Message)
	walk = func(n *html.Node, cur *Message) {
		if n.Type == html.ElementNode {
			if id := attr(n, "data-message-id"); id != "" {
				msg := Message{ID: id, Author: lastAuthor, AuthorID: lastID}
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					walk(c, &msg)
				}
				msg.Content = strings.TrimSpace(msg.Content)
				lastAuthor, lastID = msg.Author, msg.AuthorID
				out = append(out, msg)
				return
			}
			if cur != nil {
				switch {
				case hasClass(n, "chatlog__author"), hasClass(n, "chatlog__author-name"):
					cur.Author = strings.TrimSpace(text(n))
					cur.AuthorID = attr(n, "data-user-id")
					return
				case hasClass(n, "chatlog__content"):
					cur.Content += text(n)
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, cur)
		}
	}
	walk(doc, nil)

	return out, nil
}

// LoadJSONL loads messages from a JSONL export, one message per line.
func LoadJSONL(path string) ([]Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}

	var msgs []Message
	lines := strings.Split(string(data), "\n")

	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var m Message
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			slog.Warn("skipping malformed JSON", "path", path, "line", i+1, "error", err)
			continue
		}
		msgs = append(msgs, m)
	}

	if len(msgs) == 0 {
		return nil, fmt.Errorf("no valid messages found in %s", path)
	}

	return msgs, nil
}

// text returns the text under n with <br> rendered as a newline.
func text(n *html.Node) string {
	var sb strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			sb.WriteString(n.Data)
		case n.Type == html.ElementNode && n.Data == "br":
			sb.WriteString("\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return sb.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}
