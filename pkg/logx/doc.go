// Package logx configures gagbot's structured logging.
//
// Logger is a thin value type over zerolog:
//   - console output stays human readable (short timestamp, file:line caller)
//   - file output is JSON lines
//   - an optional Telegram sink forwards WARN+ records to an ops chat, rate limited
package logx
