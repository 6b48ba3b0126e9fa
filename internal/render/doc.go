// Package render turns site events into Telegram message text.
//
// Channel posts are produced from user-configured templates by literal placeholder
// substitution ({title}, {content}, {product_price}, ...). The other notifications
// (mail, comment, post, user, order) use fixed layouts built by the Format* functions.
package render
