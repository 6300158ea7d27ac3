// Package logx is a thin zerolog wrapper: readable console output with a
// short caller, an optional JSON log file, and runtime level changes.
package logx
