package reddit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Template names, one file per name under the templates directory.
var templateNames = []string{
	"onbalance",
	"ondeposit",
	"ondeposit.completed",
	"ongild",
	"ongild.insufficientfunds",
	"onsendtip",
	"onsendtip.insufficientfunds",
	"onsendtip.invalidamount",
	"onwithdraw",
	"onwithdraw.amountltefee",
	"onwithdraw.insufficientfunds",
	"onwithdraw.invalidaddress",
	"onwithdraw.invalidamount",
}

// Notifier renders named templates with {var} substitutions and delivers
// them through the Reddit client. It implements service.Notifier.
type Notifier struct {
	client    *Client
	templates map[string]string
}

// NewNotifier loads the message templates and wraps the client.
func NewNotifier(client *Client, templatesDir string) (*Notifier, error) {
	templates := make(map[string]string, len(templateNames))
	for _, name := range templateNames {
		content, err := os.ReadFile(filepath.Join(templatesDir, name+".txt"))
		if err != nil {
			return nil, fmt.Errorf("load template %s: %w", name, err)
		}
		templates[name] = string(content)
	}

	return &Notifier{
		client:    client,
		templates: templates,
	}, nil
}

func (n *Notifier) render(template string, subs map[string]string) (string, error) {
	text, ok := n.templates[template]
	if !ok {
		return "", fmt.Errorf("message template %s not found", template)
	}
	for name, value := range subs {
		text = strings.ReplaceAll(text, "{"+name+"}", value)
	}
	return text, nil
}

// SendMessage sends a private message rendered from a named template.
func (n *Notifier) SendMessage(ctx context.Context, template string, subs map[string]string, subject, recipient string) error {
	text, err := n.render(template, subs)
	if err != nil {
		return err
	}
	return n.client.compose(ctx, text, subject, recipient)
}

// Reply posts a reply to the source message rendered from a named template.
func (n *Notifier) Reply(ctx context.Context, template string, subs map[string]string, sourceExternalID string) error {
	text, err := n.render(template, subs)
	if err != nil {
		return err
	}
	return n.client.comment(ctx, text, sourceExternalID)
}
