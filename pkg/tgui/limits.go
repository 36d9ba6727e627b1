package tgui

import "errors"

// MaxCallbackDataLen is Telegram's callback_data limit in bytes, measured on
// the full "namespace:action:payload" string.
const MaxCallbackDataLen = 64

var ErrCallbackDataTooLong = errors.New("tgui: callback_data too long")
