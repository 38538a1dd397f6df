package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"docguard/internal/session"
)

func main() {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	_ = godotenv.Load()

	baseURL := os.Getenv("PORTAL_API_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	snapshotPath := os.Getenv("PORTAL_SESSION_FILE")
	if snapshotPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			log.Fatal(err)
		}
		snapshotPath = filepath.Join(home, ".docguard-session.db")
	}

	logger := zap.NewExample()
	defer logger.Sync()

	snapshot, err := session.NewSnapshot(snapshotPath)
	if err != nil {
		log.Fatal(err)
	}
	defer snapshot.Close()

	store := session.NewStore()
	api := session.NewHTTPClient(baseURL)
	controller := session.NewController(store, snapshot, api, logger)
	controller.OnExpired(func() {
		fmt.Println("\nLa sesión expiró. Inicia sesión nuevamente.")
	})

	if err := controller.Hydrate(); err != nil {
		logger.Warn("hydrate failed", zap.Error(err))
	}

	fmt.Println("===== Portal DocGuard =====")
	fmt.Println("Comandos: login, verify, whoami, docs, guard <ruta> [rol], logout, salir")

	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch strings.ToLower(fields[0]) {
		case "login":
			runLogin(ctx, reader, controller)
		case "verify":
			runVerify(ctx, reader, controller)
		case "whoami":
			printSession(store)
		case "docs":
			listDocuments(ctx, store, api)
		case "guard":
			if len(fields) < 2 {
				fmt.Println("Uso: guard <ruta> [rol]")
				continue
			}
			role := ""
			if len(fields) > 2 {
				role = fields[2]
			}
			decision := session.EvaluateGuard(store.State(time.Now()), time.Now(), fields[1], role)
			if decision.Allow {
				fmt.Println("Acceso permitido.")
			} else {
				fmt.Printf("Redirección a %s\n", decision.Redirect)
			}
		case "logout":
			controller.Logout(ctx)
			fmt.Println("Sesión cerrada.")
		case "salir", "exit", "quit":
			return
		default:
			fmt.Println("Comando desconocido.")
		}
	}
}

func runLogin(ctx context.Context, reader *bufio.Reader, controller *session.Controller) {
	fmt.Print("Email o usuario: ")
	identifier, _ := reader.ReadString('\n')
	fmt.Print("Contraseña: ")
	password, _ := reader.ReadString('\n')

	result, err := controller.Login(ctx, strings.TrimSpace(identifier), strings.TrimSpace(password))
	if err != nil {
		printAuthError(err)
		return
	}
	if result.RequiresTwoFactor {
		fmt.Println("Se envió un código de verificación a tu correo. Usa el comando verify.")
		return
	}
	fmt.Printf("Bienvenido, %s.\n", displayName(result.User.DisplayName, result.User.Email))
}

func runVerify(ctx context.Context, reader *bufio.Reader, controller *session.Controller) {
	fmt.Print("Código de 6 dígitos: ")
	code, _ := reader.ReadString('\n')

	user, err := controller.VerifyTwoFactor(ctx, strings.TrimSpace(code))
	if err != nil {
		printAuthError(err)
		return
	}
	fmt.Printf("Bienvenido, %s.\n", displayName(user.DisplayName, user.Email))
}

func printSession(store *session.Store) {
	state := store.State(time.Now())
	if !state.IsAuthenticated(time.Now()) {
		fmt.Println("No hay sesión activa.")
		return
	}
	fmt.Printf("Usuario: %s (%s)\n", displayName(state.User.DisplayName, state.User.Email), state.User.Role)
	fmt.Printf("Token de acceso vence: %s\n", state.Tokens.Access.ExpiresAt.Local().Format(time.RFC1123))
}

func listDocuments(ctx context.Context, store *session.Store, api *session.HTTPClient) {
	state := store.State(time.Now())
	if !state.IsAuthenticated(time.Now()) {
		fmt.Println("No hay sesión activa.")
		return
	}
	docs, err := api.ListDocuments(ctx, state.Tokens.Access.Value)
	if err != nil {
		printAuthError(err)
		return
	}
	if len(docs) == 0 {
		fmt.Println("No hay documentos.")
		return
	}
	for _, d := range docs {
		fmt.Printf("%s  %-30s  %-18s  %s\n", d.ID, d.Name, d.Status, d.UploadedAt.Local().Format("2006-01-02 15:04"))
	}
}

func printAuthError(err error) {
	switch {
	case errors.Is(err, session.ErrInvalidCode):
		fmt.Println("El código debe tener 6 dígitos.")
	case errors.Is(err, session.ErrNoPendingTwoFactor):
		fmt.Println("No hay verificación pendiente. Inicia sesión nuevamente.")
	case errors.Is(err, session.ErrAuthentication):
		fmt.Println("Credenciales o código rechazados.")
	case session.IsNetworkError(err):
		fmt.Println("No se pudo contactar al servidor. Intenta de nuevo.")
	default:
		fmt.Printf("Error: %v\n", err)
	}
}

func displayName(name, email string) string {
	if name != "" {
		return name
	}
	return email
}
