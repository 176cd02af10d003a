package realtime

import (
	"errors"

	domainerrors "github.com/jamsync/jam-server/internal/errors"
)

// classify maps a command error to its wire kind and client-facing message. Errors that do
// not carry a domain code are storage failures and get a generic message.
func classify(err error) (ErrorKind, string) {
	var domainErr *domainerrors.Error
	if !errors.As(err, &domainErr) {
		return KindDatabase, "database error"
	}

	switch domainErr.Code {
	case domainerrors.CodeForbidden:
		return KindForbidden, domainErr.Message
	case domainerrors.CodeQuotaExceeded:
		return KindQuotaExceeded, domainErr.Message
	case domainerrors.CodeProvider:
		return KindProvider, domainErr.Message
	case domainerrors.CodeRateLimited:
		return KindRateLimited, domainErr.Message
	case domainerrors.CodeInternal:
		return KindDatabase, "database error"
	default:
		return KindDatabase, domainErr.Message
	}
}
