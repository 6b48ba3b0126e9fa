package telegram

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// envelope is the Bot API response wrapper: {"ok": bool, "result": ..., "description": ...}
type envelope struct {
	OK          bool
	Description string
	Result      gjson.Result
}

// parseEnvelope normalises "ok" to a bool. Both the JSON literal true and the string
// "true" count as success.
func parseEnvelope(body []byte) (envelope, error) {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return envelope{}, fmt.Errorf("%w: unparseable response", ErrFailed)
	}

	res := gjson.ParseBytes(body)
	if !res.IsObject() {
		return envelope{}, fmt.Errorf("%w: unexpected response", ErrFailed)
	}

	return envelope{
		OK:          res.Get("ok").Bool(),
		Description: res.Get("description").String(),
		Result:      res.Get("result"),
	}, nil
}

func (e envelope) failure() error {
	if e.Description != "" {
		return &RejectedError{Description: e.Description}
	}
	return ErrFailed
}

func interpretBotResponse(body []byte) (string, error) {
	env, err := parseEnvelope(body)
	if err != nil {
		return "", err
	}
	if !env.OK {
		return "", env.failure()
	}
	return SentToBot, nil
}

// interpretRelayResponse handles the relay's plaintext protocol: "ok" on success,
// otherwise the body explains the failure.
func interpretRelayResponse(body []byte) (string, error) {
	text := strings.TrimSpace(string(body))
	switch text {
	case "ok":
		return SentToRelay, nil
	case "":
		return "", ErrFailed
	default:
		return "", &RejectedError{Description: text}
	}
}
