// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"errors"
	"fmt"
)

// Error kinds. Every domain error wraps exactly one of these.
var (
	ErrValidation     = errors.New("validation error")
	ErrNotFound       = errors.New("not found")
	ErrForbiddenPhase = errors.New("forbidden in current phase")
	ErrConflict       = errors.New("conflict")
	ErrDependency     = errors.New("dependency unavailable")
)

// CodedError carries a stable machine readable code alongside its kind.
type CodedError struct {
	Code string
	Kind error
	Msg  string
}

func (e *CodedError) Error() string {
	return e.Code + ": " + e.Msg
}

func (e *CodedError) Unwrap() error {
	return e.Kind
}

// Is matches another CodedError with the same code, so wrapped copies
// produced by WithMessage still satisfy errors.Is against the base value.
func (e *CodedError) Is(target error) bool {
	t, ok := target.(*CodedError)
	return ok && t.Code == e.Code
}

// WithMessage returns a copy of e carrying a more specific message.
func (e *CodedError) WithMessage(format string, args ...any) *CodedError {
	return &CodedError{Code: e.Code, Kind: e.Kind, Msg: fmt.Sprintf(format, args...)}
}

var (
	ErrInvalidCategory = &CodedError{
		Code: "InvalidCategory", Kind: ErrValidation,
		Msg: "category must be one of couple, funny, scary, overall",
	}
	ErrMissingFields = &CodedError{
		Code: "MissingFields", Kind: ErrValidation,
		Msg: "required fields are missing",
	}
	ErrInvalidEntryType = &CodedError{
		Code: "InvalidEntryType", Kind: ErrValidation,
		Msg: "type must be individual or group",
	}
	ErrImmutableField = &CodedError{
		Code: "ImmutableField", Kind: ErrValidation,
		Msg: "id and votes cannot be changed through this endpoint",
	}
	ErrCategoryIneligible = &CodedError{
		Code: "CategoryIneligible", Kind: ErrValidation,
		Msg: "this entry is not eligible for the category",
	}
	ErrDuplicateEntryAcrossCategories = &CodedError{
		Code: "DuplicateEntryAcrossCategories", Kind: ErrValidation,
		Msg: "each costume can only be voted for once across categories",
	}
	ErrInvalidScheduleOrder = &CodedError{
		Code: "InvalidScheduleOrder", Kind: ErrValidation,
		Msg: "voting start must be before voting end",
	}
	ErrInvalidSchedule = &CodedError{
		Code: "ValidationError", Kind: ErrValidation,
		Msg: "invalid timing settings",
	}
	ErrNotAnImage = &CodedError{
		Code: "NotAnImage", Kind: ErrValidation,
		Msg: "only image files are allowed",
	}
	ErrFileTooLarge = &CodedError{
		Code: "FileTooLarge", Kind: ErrValidation,
		Msg: "file too large",
	}
	ErrEntryNotFound = &CodedError{
		Code: "EntryNotFound", Kind: ErrNotFound,
		Msg: "entry not found",
	}
	ErrVoteNotFound = &CodedError{
		Code: "VoteNotFound", Kind: ErrNotFound,
		Msg: "no vote found for this voter and category",
	}
	ErrTypeChangeConflict = &CodedError{
		Code: "TypeChangeConflict", Kind: ErrConflict,
		Msg: "entry holds votes in a category its new type is not eligible for",
	}
	ErrContention = &CodedError{
		Code: "ConflictError", Kind: ErrConflict,
		Msg: "too many concurrent updates, please retry",
	}
)

// ErrorCode returns the stable code for err, falling back to the kind name.
func ErrorCode(err error) string {
	var ce *CodedError
	if errors.As(err, &ce) {
		return ce.Code
	}
	switch {
	case errors.Is(err, ErrValidation):
		return "ValidationError"
	case errors.Is(err, ErrNotFound):
		return "NotFoundError"
	case errors.Is(err, ErrForbiddenPhase):
		return "ForbiddenPhaseError"
	case errors.Is(err, ErrConflict):
		return "ConflictError"
	}
	return "DependencyError"
}
