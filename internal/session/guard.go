package session

import (
	"net/url"
	"time"
)

// Rutas de escape del guard.
const (
	LoginPath        = "/login"
	UnauthorizedPath = "/unauthorized"
)

// Decision es el resultado de evaluar el guard para una navegación.
type Decision struct {
	Allow    bool
	Redirect string
}

// EvaluateGuard decide si la navegación a path procede con el estado de
// sesión dado. Sin autenticación redirige a login llevando la ruta original;
// con rol insuficiente redirige a la página de no autorizado. Es una función
// pura, se reevalúa en cada navegación sin memoria de decisiones previas.
func EvaluateGuard(state State, now time.Time, path, requiredRole string) Decision {
	if !state.IsAuthenticated(now) {
		return Decision{Redirect: LoginPath + "?from=" + url.QueryEscape(path)}
	}
	if requiredRole != "" && state.User.Role != requiredRole {
		return Decision{Redirect: UnauthorizedPath}
	}
	return Decision{Allow: true}
}
