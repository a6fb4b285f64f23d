package server

const (
	// Validation (1xxx)
	ErrCodeInvalidArgument   = 1000
	ErrCodeInvalidJSON       = 1001
	ErrCodeRequestTooLarge   = 1002
	ErrCodeInvalidQuery      = 1003
	ErrCodeInvalidID         = 1004
	ErrCodeInvalidCoordinate = 1005
	ErrCodeMissingRequired   = 1009
	ErrCodeInvalidMultipart  = 1020
	ErrCodeInvalidFileType   = 1021
	ErrCodeFileTooLarge      = 1022
	ErrCodeEmptyFile         = 1023

	// Domain state (2xxx)
	ErrCodeActivityNotFound = 2001
	ErrCodeFileNotFound     = 2002

	// Limits (3xxx)
	ErrCodeResourceExhausted = 3003

	// Internal/system (4xxx)
	ErrCodeInternal     = 4001
	ErrCodeStoreFailure = 4002
	ErrCodeUploadFailed = 4006
)

func defaultErrorCodeByStatus(status int) int {
	switch status {
	case 400:
		return ErrCodeInvalidArgument
	case 404:
		return ErrCodeActivityNotFound
	case 429:
		return ErrCodeResourceExhausted
	case 500:
		return ErrCodeInternal
	default:
		return 0
	}
}
