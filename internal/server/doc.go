// Package server exposes telefication over HTTP with gin.
//
// The two /ajax endpoints back the settings page: they answer in plain text exactly what
// the page shows the user. Sites push events to /events as JSON. /bypass lets an
// instance act as the bypass relay for another.
package server
