package tgui

import "strings"

// Data formats callback data as "namespace:action:payload". The payload is
// kept verbatim and may itself contain ':'.
func Data(namespace, action, payload string) (string, error) {
	s := strings.TrimSpace(namespace) + ":" + strings.TrimSpace(action)
	if payload != "" {
		s += ":" + payload
	}
	if len(s) > MaxCallbackDataLen {
		return "", ErrCallbackDataTooLong
	}
	return s, nil
}

// ParseData splits callback data produced by Data.
func ParseData(data string) (namespace, action, payload string, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(data), ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", "", false
	}
	if len(parts) == 3 {
		payload = parts[2]
	}
	return parts[0], parts[1], payload, true
}
