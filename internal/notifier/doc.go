// Package notifier turns site events into Telegram deliveries.
//
// A Registry maps each event kind to the handlers that were enabled in the settings
// snapshot it was built from. Handlers render their message and hand it to a Sender,
// which is a *telegram.Client in production and a DryRun printer for previews.
package notifier
