// Package logx provides a small structured logging layer over zerolog with
// runtime-reconfigurable sinks (console, file) and slog-like field helpers.
//
// Loggers handed out by Service stay live across Apply() calls, so components
// can hold a Logger by value and still pick up level/sink changes from config
// hot reload.
package logx
