package scheduler

import (
	"strings"

	"github.com/bjo163/wablast/internal/domain"
)

// Render fills template placeholders from one contact and appends the
// contact's extra message. Rendering happens once at schedule time; edits
// to a template never rewrite queued jobs.
func Render(content string, ct domain.Contact) string {
	body := content
	if ct.RecipientName != "" {
		body = strings.ReplaceAll(body, "{Nama}", ct.RecipientName)
		body = strings.ReplaceAll(body, "{nama}", ct.RecipientName)
	}
	body = strings.ReplaceAll(body, "{pesan_tambahan}", ct.AdditionalMessage)

	if ct.ExtraMessage != "" {
		if body == "" {
			body = ct.ExtraMessage
		} else {
			body = body + "\n\n" + ct.ExtraMessage
		}
	}
	return strings.TrimSpace(body)
}
