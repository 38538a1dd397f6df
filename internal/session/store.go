// Package session implementa el ciclo de vida de sesión del cliente del
// portal: almacenamiento de credenciales, verificación en dos pasos,
// refresco programado de tokens y guardado durable entre ejecuciones.
package session

import (
	"sync"
	"time"

	"docguard/internal/domain"
)

// pendingTTL es la vigencia máxima de una verificación 2FA pendiente.
const pendingTTL = 5 * time.Minute

// Token es una credencial con su vencimiento explícito.
type Token struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired indica si el token ya venció respecto de now.
func (t Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// TokenPair agrupa el token de acceso y el de refresco.
type TokenPair struct {
	Access  Token `json:"access"`
	Refresh Token `json:"refresh"`
}

// PendingTwoFactor referencia una verificación 2FA iniciada y aún sin resolver.
type PendingTwoFactor struct {
	SessionID string
	IssuedAt  time.Time
}

// Expired indica si la verificación pendiente ya no es válida.
func (p PendingTwoFactor) Expired(now time.Time) bool {
	return now.Sub(p.IssuedAt) >= pendingTTL
}

// State es una copia inmutable del contenido del Store.
type State struct {
	User       *domain.User
	Tokens     *TokenPair
	Pending    *PendingTwoFactor
	Generation uint64
}

// IsAuthenticated indica si hay usuario y token de acceso vigente.
func (s State) IsAuthenticated(now time.Time) bool {
	return s.User != nil && s.Tokens != nil && !s.Tokens.Access.Expired(now)
}

// Store contiene el estado de sesión del proceso. Tiene un único escritor
// (el Controller) y múltiples lectores; cada transición reemplaza el estado
// completo bajo lock.
type Store struct {
	mu         sync.RWMutex
	user       *domain.User
	tokens     *TokenPair
	pending    *PendingTwoFactor
	generation uint64
}

// NewStore crea un Store vacío.
func NewStore() *Store {
	return &Store{}
}

// SetCredentials fija usuario y tokens como unidad atómica y descarta
// cualquier verificación 2FA pendiente.
func (s *Store) SetCredentials(user domain.User, tokens TokenPair) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := user
	t := tokens
	s.user = &u
	s.tokens = &t
	s.pending = nil
	s.generation++
}

// SetTwoFactorPending registra una verificación 2FA en curso sin tocar
// usuario ni tokens.
func (s *Store) SetTwoFactorPending(sessionID string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = &PendingTwoFactor{SessionID: sessionID, IssuedAt: now}
}

// ClearCredentials vuelve al estado inicial vacío.
func (s *Store) ClearCredentials() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	s.tokens = nil
	s.pending = nil
	s.generation++
}

// State devuelve una copia del estado actual. Una verificación 2FA vencida
// se reporta como ausente.
func (s *Store) State(now time.Time) State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := State{Generation: s.generation}
	if s.user != nil {
		u := *s.user
		st.User = &u
	}
	if s.tokens != nil {
		t := *s.tokens
		st.Tokens = &t
	}
	if s.pending != nil && !s.pending.Expired(now) {
		p := *s.pending
		st.Pending = &p
	}
	return st
}

// IsAuthenticated indica si la sesión actual está autenticada.
func (s *Store) IsAuthenticated(now time.Time) bool {
	return s.State(now).IsAuthenticated(now)
}

// Generation devuelve el contador de generación de la sesión. Se incrementa
// en cada cambio de credenciales para poder descartar respuestas obsoletas.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}
