// Package event defines the site events telefication reacts to.
//
// Every payload implements Event and reports its Kind, which the notifier registry uses
// to route it to the handlers enabled in the configuration. Payloads arrive from the host
// integration as JSON and are decoded with Decode.
package event
