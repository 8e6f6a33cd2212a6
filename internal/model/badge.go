package model

import "fmt"

// UnreadShortcutType identifies unread-notification shortcut items.
const UnreadShortcutType = "fedimux.notification.unread-shortcut"

// UnreadShortcut is one quick-action entry for an account with unread
// notifications, regenerated on every badge recompute.
type UnreadShortcut struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle"`
	AccessToken string `json:"access_token"`
}

// PluralUnread renders the human-readable unread-count string.
func PluralUnread(count int) string {
	if count == 1 {
		return "1 unread notification"
	}
	return fmt.Sprintf("%d unread notifications", count)
}
