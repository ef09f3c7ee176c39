package core

import (
	"errors"
	"fmt"

	"github.com/jo-hoe/itemlens/internal/backend/database"
)

var (
	// ErrInputRejected marks frames the caller should capture again
	ErrInputRejected = errors.New("input rejected")
	// ErrBlurryFrame is an ErrInputRejected for frames below the blur threshold
	ErrBlurryFrame = fmt.Errorf("%w: frame is too blurry", ErrInputRejected)
	// ErrItemNotFound is returned for enrollment calls on unknown item ids
	ErrItemNotFound = database.ErrItemNotFound
	// ErrEnrollmentComplete is returned when an item already has all its reference images
	ErrEnrollmentComplete = errors.New("enrollment already complete")
	// ErrInvalidURL is returned when an item is enrolled without a URL
	ErrInvalidURL = errors.New("item URL is required")
)
