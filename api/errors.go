package api

// ErrorCategory values are attached to every error leaving a bpkg pipeline
// (see github.com/warpfork/go-errcat).  Each is paired with the exit code the
// command driver uses when the error reaches the top.
type ErrorCategory string
type ExitCode int

const (
	ExitSuccess                               = ExitCode(0)
	ExitUsage, ErrUsage                       = ExitCode(1), ErrorCategory("bpkg-usage-error")       // Some piece of caller input was invalid and unrunnable.
	ExitPanic                                 = ExitCode(2)                                          // Placeholder.  '2' happens when golang exits due to panic.
	ExitIO, ErrIO                             = ExitCode(3), ErrorCategory("bpkg-io-error")          // Temp path unavailable, stream open/read/write failure, stat failure.
	ExitArchiveCorrupt, ErrArchiveCorrupt     = ExitCode(4), ErrorCategory("bpkg-archive-corrupt")   // The inner tar could not be parsed, or names an entry outside the destination.
	ExitEntryMissing, ErrEntryMissing         = ExitCode(5), ErrorCategory("bpkg-entry-missing")     // A package lacks its content or signature entry.
	ExitUnsupportedEntry, ErrUnsupportedEntry = ExitCode(6), ErrorCategory("bpkg-unsupported-entry") // An entry is neither a regular file nor a directory.
	ExitCodec, ErrCodec                       = ExitCode(7), ErrorCategory("bpkg-codec-error")       // The compression engine reported a non-OK status.
	ExitSigning, ErrSigning                   = ExitCode(8), ErrorCategory("bpkg-signing-error")     // The signer is unavailable or the identity could not be loaded.
	ExitSignatureInvalid, ErrSignatureInvalid = ExitCode(9), ErrorCategory("bpkg-signature-invalid") // The signature does not match the content.
	ExitTrustRejected, ErrTrustRejected       = ExitCode(10), ErrorCategory("bpkg-trust-rejected")   // The signer's chain does not lead to the trust anchor, or the anchor is unusable.
	ExitTODO                                  = ExitCode(254)                                        // This exit code should be replaced with something more specific.
)

var exitCodes = map[ErrorCategory]ExitCode{
	ErrUsage:            ExitUsage,
	ErrIO:               ExitIO,
	ErrArchiveCorrupt:   ExitArchiveCorrupt,
	ErrEntryMissing:     ExitEntryMissing,
	ErrUnsupportedEntry: ExitUnsupportedEntry,
	ErrCodec:            ExitCodec,
	ErrSigning:          ExitSigning,
	ErrSignatureInvalid: ExitSignatureInvalid,
	ErrTrustRejected:    ExitTrustRejected,
}

// ExitCodeFor maps an error category to its exit code.
// Unknown categories get ExitTODO.
func ExitCodeFor(category interface{}) ExitCode {
	if category == nil {
		return ExitSuccess
	}
	if c, ok := category.(ErrorCategory); ok {
		if code, ok := exitCodes[c]; ok {
			return code
		}
	}
	return ExitTODO
}
