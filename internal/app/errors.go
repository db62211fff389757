package app

import (
	"errors"
	"fmt"
	"net/http"

	"retroboard/api/internal/cards"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func errNotFound(what string) *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", what+" not found", nil)
}

func errForbidden() *DomainError {
	return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
}

func errBoardClosed() *DomainError {
	return domainError(http.StatusConflict, "BOARD_CLOSED", "Board is closed", nil)
}

func errValidation(message string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, nil)
}

func errLimitReached(kind string) *DomainError {
	return domainError(http.StatusConflict, "LIMIT_REACHED", "Per-user "+kind+" limit reached", nil)
}

// ruleToDomain translates a relationship rule rejection into its HTTP shape.
// Rule codes travel to the client unchanged so the predictive validator can
// match messages one to one.
func ruleToDomain(err error) error {
	var rule *cards.RuleError
	if !errors.As(err, &rule) {
		return err
	}
	if rule == cards.ErrUnknownCard {
		return errNotFound("card")
	}
	return domainError(http.StatusUnprocessableEntity, rule.Code, rule.Message, nil)
}
