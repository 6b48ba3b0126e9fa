// Package sanitize cleans user and site supplied markup before it is sent to Telegram.
//
// StripTags removes every HTML tag that is not on an allow-list while keeping the
// allow-listed tags byte-for-byte, so the result can be delivered with Telegram's HTML
// parse mode. ToText flattens a full HTML document (typically an e-mail body) into
// readable plain text.
package sanitize
