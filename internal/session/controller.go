package session

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"docguard/internal/domain"
)

// refreshLeeway es cuánto antes del vencimiento del token de acceso se
// dispara el refresco programado.
const refreshLeeway = 5 * time.Minute

var codePattern = regexp.MustCompile(`^\d{6}$`)

// Clock devuelve el instante actual. Inyectable para tests.
type Clock func() time.Time

// Scheduler agenda fn para dentro de d y devuelve una función de cancelación.
type Scheduler func(d time.Duration, fn func()) (cancel func())

// SnapshotStore define el contrato de persistencia de la sesión.
type SnapshotStore interface {
	Save(user domain.User, tokens TokenPair) error
	Load() (domain.User, TokenPair, bool, error)
	Clear() error
}

// Controller orquesta login, verificación 2FA, logout y refresco programado
// de tokens. Es el único escritor del Store.
type Controller struct {
	store    *Store
	snapshot SnapshotStore
	api      APIClient
	logger   *zap.Logger
	now      Clock
	schedule Scheduler

	// onExpired se invoca cuando un refresco falla y la sesión se limpió
	// de forma involuntaria.
	onExpired func()

	mu            sync.Mutex
	cancelRefresh func()
}

// NewController crea un Controller con reloj y scheduler reales.
func NewController(store *Store, snapshot SnapshotStore, api APIClient, logger *zap.Logger) *Controller {
	return &Controller{
		store:    store,
		snapshot: snapshot,
		api:      api,
		logger:   logger,
		now:      time.Now,
		schedule: func(d time.Duration, fn func()) func() {
			t := time.AfterFunc(d, fn)
			return func() { t.Stop() }
		},
	}
}

// WithClock reemplaza el reloj. Pensado para tests.
func (c *Controller) WithClock(now Clock) *Controller {
	c.now = now
	return c
}

// WithScheduler reemplaza el scheduler. Pensado para tests.
func (c *Controller) WithScheduler(s Scheduler) *Controller {
	c.schedule = s
	return c
}

// OnExpired registra el hook a invocar cuando la sesión expira de forma
// involuntaria (refresco rechazado).
func (c *Controller) OnExpired(fn func()) {
	c.onExpired = fn
}

// Hydrate restaura la sesión persistida, si existe y su token de acceso
// sigue vigente. Un snapshot vencido se descarta y se limpia el storage.
func (c *Controller) Hydrate() error {
	if c.snapshot == nil {
		return nil
	}
	user, tokens, found, err := c.snapshot.Load()
	if err != nil {
		return fmt.Errorf("loading session snapshot: %w", err)
	}
	if !found {
		return nil
	}
	if tokens.Access.Expired(c.now()) {
		if err := c.snapshot.Clear(); err != nil {
			return fmt.Errorf("clearing expired snapshot: %w", err)
		}
		return nil
	}
	c.store.SetCredentials(user, tokens)
	c.scheduleRefresh()
	return nil
}

// Login autentica con email o usuario. Cuando la cuenta exige 2FA devuelve
// el identificador de la verificación pendiente en lugar de credenciales.
func (c *Controller) Login(ctx context.Context, identifier, password string) (LoginResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return LoginResult{}, fmt.Errorf("%w: identifier and password required", ErrAuthentication)
	}

	generation := c.store.Generation()
	result, err := c.api.Login(ctx, identifier, password)
	if err != nil {
		return LoginResult{}, err
	}
	if c.store.Generation() != generation {
		return LoginResult{}, ErrSessionChanged
	}

	if result.RequiresTwoFactor {
		c.store.SetTwoFactorPending(result.SessionID, c.now())
		return result, nil
	}
	if result.Tokens == nil {
		return LoginResult{}, &NetworkError{Err: fmt.Errorf("login response missing tokens")}
	}
	c.applyCredentials(result.User, *result.Tokens)
	return result, nil
}

// VerifyTwoFactor completa una verificación 2FA pendiente.
func (c *Controller) VerifyTwoFactor(ctx context.Context, code string) (domain.User, error) {
	code = strings.TrimSpace(code)
	if !codePattern.MatchString(code) {
		return domain.User{}, ErrInvalidCode
	}

	state := c.store.State(c.now())
	if state.Pending == nil {
		return domain.User{}, ErrNoPendingTwoFactor
	}

	generation := c.store.Generation()
	user, tokens, err := c.api.VerifyTwoFactor(ctx, state.Pending.SessionID, code)
	if err != nil {
		return domain.User{}, err
	}
	if c.store.Generation() != generation {
		return domain.User{}, ErrSessionChanged
	}

	c.applyCredentials(user, tokens)
	return user, nil
}

// Logout limpia la sesión local incondicionalmente. La llamada remota es a
// mejor esfuerzo y su falla se descarta.
func (c *Controller) Logout(ctx context.Context) {
	c.cancelPendingRefresh()

	state := c.store.State(c.now())
	if state.Tokens != nil {
		if err := c.api.Logout(ctx, state.Tokens.Access.Value, state.Tokens.Refresh.Value); err != nil {
			c.logger.Debug("remote logout failed", zap.Error(err))
		}
	}

	c.store.ClearCredentials()
	if c.snapshot != nil {
		if err := c.snapshot.Clear(); err != nil {
			c.logger.Warn("clearing session snapshot failed", zap.Error(err))
		}
	}
}

// applyCredentials fija las credenciales, persiste el snapshot y re-arma el
// timer de refresco.
func (c *Controller) applyCredentials(user domain.User, tokens TokenPair) {
	c.store.SetCredentials(user, tokens)
	if c.snapshot != nil {
		if err := c.snapshot.Save(user, tokens); err != nil {
			c.logger.Warn("saving session snapshot failed", zap.Error(err))
		}
	}
	c.scheduleRefresh()
}

// scheduleRefresh arma el timer de refresco para el token actual. Siempre
// cancela el timer previo antes de armar uno nuevo; nunca hay más de uno.
func (c *Controller) scheduleRefresh() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancelRefresh != nil {
		c.cancelRefresh()
		c.cancelRefresh = nil
	}

	state := c.store.State(c.now())
	if state.Tokens == nil {
		return
	}
	d := state.Tokens.Access.ExpiresAt.Sub(c.now()) - refreshLeeway
	if d <= 0 {
		return
	}

	generation := state.Generation
	c.cancelRefresh = c.schedule(d, func() {
		c.refresh(generation)
	})
}

// refresh ejecuta el refresco programado. Descarta el disparo si la sesión
// cambió de generación desde que se armó el timer.
func (c *Controller) refresh(generation uint64) {
	if c.store.Generation() != generation {
		return
	}
	state := c.store.State(c.now())
	if state.User == nil || state.Tokens == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tokens, err := c.api.Refresh(ctx, state.Tokens.Refresh.Value)
	if err != nil {
		c.logger.Warn("token refresh failed", zap.Error(err))
		c.expire()
		return
	}
	if c.store.Generation() != generation {
		return
	}
	c.applyCredentials(*state.User, tokens)
}

// expire limpia la sesión tras un refresco rechazado y notifica a la capa
// de navegación.
func (c *Controller) expire() {
	c.cancelPendingRefresh()
	c.store.ClearCredentials()
	if c.snapshot != nil {
		if err := c.snapshot.Clear(); err != nil {
			c.logger.Warn("clearing session snapshot failed", zap.Error(err))
		}
	}
	if c.onExpired != nil {
		c.onExpired()
	}
}

func (c *Controller) cancelPendingRefresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelRefresh != nil {
		c.cancelRefresh()
		c.cancelRefresh = nil
	}
}
