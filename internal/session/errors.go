package session

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthentication indica credenciales o código de verificación rechazados.
	ErrAuthentication = errors.New("authentication failed")
	// ErrNoPendingTwoFactor indica que se intentó verificar un código sin
	// una verificación 2FA en curso.
	ErrNoPendingTwoFactor = errors.New("no active 2fa session")
	// ErrInvalidCode indica un código con formato inválido (no son 6 dígitos).
	ErrInvalidCode = errors.New("invalid verification code format")
	// ErrSessionChanged indica que la sesión cambió de generación mientras
	// la llamada remota estaba en vuelo; la respuesta se descarta.
	ErrSessionChanged = errors.New("session changed during request")
)

// NetworkError envuelve una falla de transporte hacia el endpoint remoto.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsNetworkError indica si err corresponde a una falla de transporte.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
