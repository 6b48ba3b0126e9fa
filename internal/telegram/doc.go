// Package telegram delivers notifications to Telegram.
//
// A Client targets either the hosted Telefication relay (when no bot token is configured)
// or the user's own bot through the Telegram Bot API. Requests are plain GETs with the
// payload in the query string, which makes it possible to route them through a bypass
// relay: the full request URL is percent-encoded, letter-rotated (ROT13) and handed to the
// bypass host as its "request" parameter. BypassRelay implements the receiving side.
//
// Each call is a single blocking round trip. There are no retries.
package telegram
