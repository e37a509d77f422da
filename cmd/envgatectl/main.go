// envgatectl es la CLI de operaciones: migraciones, alta de environments y
// rotación/reveal de claves, directo contra la base (sin pasar por HTTP).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/envgate/internal/config"
	"github.com/dropDatabas3/envgate/internal/domain/repository"
	envsvc "github.com/dropDatabas3/envgate/internal/http/services/environments"
	"github.com/dropDatabas3/envgate/internal/keys"
	"github.com/dropDatabas3/envgate/internal/observability/logger"
	"github.com/dropDatabas3/envgate/internal/store/pg"
	migrations "github.com/dropDatabas3/envgate/migrations/postgres"
)

type runtime struct {
	cfg   *config.Config
	store *pg.Store
	keys  *keys.Service
}

func connect(ctx context.Context, configPath string) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	store, err := pg.Connect(ctx, pg.Config{DSN: cfg.Storage.DSN})
	if err != nil {
		return nil, err
	}
	return &runtime{
		cfg:   cfg,
		store: store,
		keys: &keys.Service{
			Envs:             store.Environments,
			EncryptionSecret: cfg.Secrets.Encryption,
			IndexSecret:      cfg.Secrets.KeyIndex,
			MaxRetries:       cfg.Auth.KeyGenMaxRetries,
		},
	}, nil
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func main() {
	_ = godotenv.Load()
	logger.Init(logger.Config{Env: "dev", Level: "warn"})

	var configPath string

	root := &cobra.Command{
		Use:          "envgatectl",
		Short:        "Operaciones de envgate contra la base de datos",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("ENVGATE_CONFIG"), "ruta del YAML de configuración")

	root.AddCommand(migrateCmd(&configPath))
	root.AddCommand(createEnvCmd(&configPath))
	root.AddCommand(rotateCmd(&configPath))
	root.AddCommand(revealCmd(&configPath))

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones embebidas del esquema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := connect(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer rt.store.Close()

			if err := rt.store.ApplyMigrations(cmd.Context(), migrations.FS, migrations.Dir); err != nil {
				return err
			}
			fmt.Println("migrations applied")
			return nil
		},
	}
}

func createEnvCmd(configPath *string) *cobra.Command {
	var (
		projectID  string
		name       string
		signUp     bool
		sessionTTL time.Duration
		refreshTTL time.Duration
	)
	cmd := &cobra.Command{
		Use:   "create-env",
		Short: "Crea un environment; imprime los plaintexts de las claves UNA sola vez",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if projectID == "" || name == "" {
				return fmt.Errorf("--project y --name son requeridos")
			}
			rt, err := connect(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer rt.store.Close()

			env := &repository.Environment{
				ProjectID:     projectID,
				Name:          name,
				Active:        true,
				SignUpEnabled: signUp,
				SessionTTL:    sessionTTL,
			}
			if refreshTTL > 0 {
				env.RefreshTTL = &refreshTTL
			}

			ks, err := rt.keys.CreateEnvironment(cmd.Context(), env)
			if err != nil {
				return err
			}
			printJSON(map[string]string{
				"environment_id": env.ID,
				"public_key":     ks.PublicKey,
				"secret_key":     ks.SecretKey,
				"signing_key":    ks.SigningKey,
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "UUID del proyecto dueño")
	cmd.Flags().StringVar(&name, "name", "", "nombre del environment")
	cmd.Flags().BoolVar(&signUp, "signup", false, "habilitar sign-up abierto")
	cmd.Flags().DurationVar(&sessionTTL, "session-ttl", 15*time.Minute, "TTL del session token")
	cmd.Flags().DurationVar(&refreshTTL, "refresh-ttl", 0, "TTL del refresh token (0 = sin refresh)")
	return cmd
}

func rotateCmd(configPath *string) *cobra.Command {
	var envID, kind string
	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Rota una clave del environment; imprime el plaintext nuevo",
		RunE: func(cmd *cobra.Command, _ []string) error {
			k, err := envsvc.KindFromString(kind)
			if err != nil {
				return err
			}
			rt, err := connect(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer rt.store.Close()

			plaintext, err := rt.keys.Rotate(cmd.Context(), envID, k)
			if err != nil {
				return err
			}
			printJSON(map[string]string{"kind": string(k), "key": plaintext})
			return nil
		},
	}
	cmd.Flags().StringVar(&envID, "env", "", "UUID del environment")
	cmd.Flags().StringVar(&kind, "kind", "", "public | secret | signing")
	_ = cmd.MarkFlagRequired("env")
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}

func revealCmd(configPath *string) *cobra.Command {
	var envID, kind string
	cmd := &cobra.Command{
		Use:   "reveal",
		Short: "Descifra y muestra una clave almacenada",
		RunE: func(cmd *cobra.Command, _ []string) error {
			k, err := envsvc.KindFromString(kind)
			if err != nil {
				return err
			}
			rt, err := connect(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer rt.store.Close()

			plaintext, err := rt.keys.Reveal(cmd.Context(), envID, k)
			if err != nil {
				return err
			}
			printJSON(map[string]string{"kind": string(k), "key": plaintext})
			return nil
		},
	}
	cmd.Flags().StringVar(&envID, "env", "", "UUID del environment")
	cmd.Flags().StringVar(&kind, "kind", "", "public | secret | signing")
	_ = cmd.MarkFlagRequired("env")
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}
