// Copyright 2026 The messageportd Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import "fmt"

// Code enumerates the broker's result taxonomy (§7 of the
// specification), carried back to the proxy in the RESULT_CODE system
// key of a request-frame reply. Both broker and proxyclient decode the
// same wire values, so the enum lives here rather than being defined
// twice with an implicit numeric agreement between the two packages.
type Code int

const (
	CodeNone Code = iota
	CodeIoError
	CodeOutOfMemory
	CodeInvalidParameter
	CodeMessagePortNotFound
	CodeCertificateNotMatch
	CodeMaxExceeded
)

func (c Code) String() string {
	switch c {
	case CodeNone:
		return "NONE"
	case CodeIoError:
		return "IO_ERROR"
	case CodeOutOfMemory:
		return "OUT_OF_MEMORY"
	case CodeInvalidParameter:
		return "INVALID_PARAMETER"
	case CodeMessagePortNotFound:
		return "MESSAGE_PORT_NOT_FOUND"
	case CodeCertificateNotMatch:
		return "CERTIFICATE_NOT_MATCH"
	case CodeMaxExceeded:
		return "MAX_EXCEEDED"
	default:
		return fmt.Sprintf("Code(%d)", int(c))
	}
}
