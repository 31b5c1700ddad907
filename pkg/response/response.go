package response

import (
	"fmt"
	"strings"
)

// Code identifies a protocol response.
type Code int

// Response codes. OK and Error are the open-ended generic classes and have
// no canonical phrase.
const (
	// OK is any success response not present in the table.
	OK Code = iota
	OKCmdFinished
	OKDataFollows
	OKSendData
	OKNotFound
	OKPathNotFound
	OKCULater
	OKActivatingSSL

	// Error is any response that is neither a known phrase nor an "OK (" line.
	Error
	ErrConnClosed
	ErrAlsoDirtyHere
	ErrParentDirMissing
	ErrGroupListAlreadySet
	ErrIdentificationFailed
	ErrPermDeniedForSlave
	ErrPermDenied
	ErrSSLExpected
	ErrUnknownCommand
	ErrWin32EIOCreateDir

	numCodes
)

// genericOKPrefix marks a success line that is not in the table.
const genericOKPrefix = "OK ("

var phrases = [numCodes]string{
	OKCmdFinished:   "OK (cmd_finished).",
	OKDataFollows:   "OK (data_follows).",
	OKSendData:      "OK (send_data).",
	OKNotFound:      "OK (not_found).",
	OKPathNotFound:  "OK (path_not_found).",
	OKCULater:       "OK (cu_later).",
	OKActivatingSSL: "OK (activating_ssl).",

	ErrConnClosed:           "Connection closed.",
	ErrAlsoDirtyHere:        "File is also marked dirty here!",
	ErrParentDirMissing:     "Parent dir missing.",
	ErrGroupListAlreadySet:  "Group list already set!",
	ErrIdentificationFailed: "Identification failed!",
	ErrPermDeniedForSlave:   "Permission denied for slave!",
	ErrPermDenied:           "Permission denied!",
	ErrSSLExpected:          "SSL encrypted connection expected!",
	// Misspelled on the wire; older peers match on these exact bytes.
	ErrUnknownCommand:    "Unkown command!",
	ErrWin32EIOCreateDir: "Win32 I/O Error on CreateDirectory()",
}

// phraseLen holds len(phrases[i]); zero marks an unmapped slot.
var phraseLen [numCodes]int

func init() {
	for i, p := range phrases {
		phraseLen[i] = len(p)
	}
}

// Text returns the canonical phrase for c.
//
// The code set is closed, so asking for an unmapped code is a programming
// error and panics.
func Text(c Code) string {
	if c >= 0 && c < numCodes && phraseLen[c] > 0 {
		return phrases[c]
	}
	panic(fmt.Sprintf("BUG! No such response: %d", int(c)))
}

// Parse classifies a response line. The first code whose phrase is a prefix
// of text wins; trailing text after the phrase is ignored.
func Parse(text string) Code {
	for c := Code(0); c < numCodes; c++ {
		if phraseLen[c] > 0 && strings.HasPrefix(text, phrases[c]) {
			return c
		}
	}
	if strings.HasPrefix(text, genericOKPrefix) {
		return OK
	}
	return Error
}

// Codes returns every code that has a canonical phrase, in table order.
func Codes() []Code {
	codes := make([]Code, 0, numCodes)
	for c := Code(0); c < numCodes; c++ {
		if phraseLen[c] > 0 {
			codes = append(codes, c)
		}
	}
	return codes
}

// Mapped reports whether c has a canonical phrase.
func (c Code) Mapped() bool {
	return c >= 0 && c < numCodes && phraseLen[c] > 0
}

// IsOK reports whether c belongs to the success class.
func (c Code) IsOK() bool {
	return c >= OK && c < Error
}

// String returns the canonical phrase, or a class name for the generic codes.
func (c Code) String() string {
	switch {
	case c == OK:
		return "OK"
	case c == Error:
		return "ERROR"
	case c.Mapped():
		return phrases[c]
	default:
		return fmt.Sprintf("Code(%d)", int(c))
	}
}

// Line renders a response line for c with optional free-form detail,
// terminated by a newline.
func Line(c Code, detail string) string {
	if detail == "" {
		return Text(c) + "\n"
	}
	return Text(c) + " " + detail + "\n"
}
