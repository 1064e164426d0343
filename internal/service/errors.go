package service

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized = errors.New("sign in required")
	ErrForbidden    = errors.New("forbidden")

	ErrNotLoopOwner        = fmt.Errorf("%w: you do not own this loop", ErrForbidden)
	ErrLoopNotViewable     = fmt.Errorf("%w: this loop is private", ErrForbidden)
	ErrRemixNotAllowed     = fmt.Errorf("%w: this loop cannot be remixed", ErrForbidden)
	ErrNotFolderOwner      = fmt.Errorf("%w: you do not own this folder", ErrForbidden)
	ErrFolderPrivate       = fmt.Errorf("%w: this folder is private", ErrForbidden)
	ErrNotWhisperRecipient = fmt.Errorf("%w: this whisper is not yours", ErrForbidden)
)
