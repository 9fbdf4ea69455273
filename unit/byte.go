// Package unit holds binary byte size constants, as used by HTTP ranges.
package unit

const (
	Byte     = 1
	Kibibyte = 1024 * Byte
	Mebibyte = 1024 * Kibibyte
)
