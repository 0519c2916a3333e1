package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inkpress/internal/auth"
	"inkpress/internal/config"
	"inkpress/internal/model"
	"inkpress/internal/server"
	"inkpress/internal/service"
	"inkpress/internal/store"
	"inkpress/internal/upload"
	"inkpress/internal/worker"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 10 * time.Second
	gcInterval      = 5 * time.Minute
)

var (
	logger *zap.Logger
	cfg    config.Config
)

var rootCmd = &cobra.Command{
	Use:   "inkpress",
	Short: "inkpress - A small article publishing API",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg.Production() {
			logger, err = zap.NewProduction()
		} else {
			logger, err = zap.NewDevelopment()
		}
		return err
	},
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the HTTP API and the excerpt worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.JWTSecret == "" {
			return errors.New("a JWT secret is required (--jwt-secret or INKPRESS_JWT_SECRET)")
		}

		// Cancelled on Ctrl+C or SIGTERM
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// Initialize Store (FULL MODE - Redis + Badger)
		st, err := store.NewHybridStore(cfg.RedisAddr, cfg.BadgerPath)
		if err != nil {
			return fmt.Errorf("init store: %w", err)
		}
		defer st.Close()

		uploads, err := upload.NewDiskStorage(cfg.UploadDir)
		if err != nil {
			return err
		}

		svc := service.NewArticleService(st, st, uploads, logger)
		verifier := auth.NewVerifier(cfg.JWTSecret, logger)
		srv := server.NewServer(svc, verifier, logger, cfg.MaxUpload)
		w := worker.NewWorker(st, st, logger)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			if err := srv.Start(cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			w.Start(gctx)
			return nil
		})
		g.Go(func() error {
			st.RunGC(gctx, gcInterval)
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			logger.Info("Shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Stop(shutdownCtx)
		})

		err = g.Wait()
		logger.Info("Goodbye!")
		return err
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert reference records (the server must be stopped)",
}

var seedAuthorCmd = &cobra.Command{
	Use:   "author [username]",
	Short: "Create an author and print its id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOfflineStore(func(ctx context.Context, st *store.HybridStore) error {
			author := model.NewAuthor(args[0])
			if err := st.SaveAuthor(ctx, &author); err != nil {
				return err
			}
			logger.Info("Author created", zap.String("id", author.ID.String()), zap.String("username", author.Username))
			fmt.Println(author.ID)
			return nil
		})
	},
}

var seedCategoryCmd = &cobra.Command{
	Use:   "category [name]",
	Short: "Create a category and print its id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOfflineStore(func(ctx context.Context, st *store.HybridStore) error {
			category := model.NewCategory(args[0])
			if err := st.SaveCategory(ctx, &category); err != nil {
				return err
			}
			logger.Info("Category created", zap.String("id", category.ID.String()), zap.String("name", category.Name))
			fmt.Println(category.ID)
			return nil
		})
	},
}

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token [userId]",
	Short: "Mint a bearer token for local testing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.JWTSecret == "" {
			return errors.New("a JWT secret is required (--jwt-secret or INKPRESS_JWT_SECRET)")
		}
		userID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid user id: %w", err)
		}
		token, err := auth.NewVerifier(cfg.JWTSecret, logger).Issue(userID, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

// withOfflineStore opens Badger without Redis. Badger holds a directory
// lock, so this fails while the server is running.
func withOfflineStore(fn func(ctx context.Context, st *store.HybridStore) error) error {
	st, err := store.NewHybridStore("", cfg.BadgerPath)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer st.Close()
	return fn(context.Background(), st)
}

func main() {
	cfg = config.Load()

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfg.RedisAddr, "redis", cfg.RedisAddr, "Address of Redis server (empty disables cache and queue)")
	flags.StringVar(&cfg.BadgerPath, "badger", cfg.BadgerPath, "Path to BadgerDB data directory")
	flags.StringVar(&cfg.JWTSecret, "jwt-secret", cfg.JWTSecret, "HMAC secret for bearer tokens")
	flags.StringVar(&cfg.Env, "env", cfg.Env, "Environment (development or production)")

	serverCmd.Flags().StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	serverCmd.Flags().StringVar(&cfg.UploadDir, "upload-dir", cfg.UploadDir, "Directory for uploaded images")
	serverCmd.Flags().Int64Var(&cfg.MaxUpload, "max-upload", cfg.MaxUpload, "Maximum multipart body size in bytes")

	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")

	seedCmd.AddCommand(seedAuthorCmd, seedCategoryCmd)
	rootCmd.AddCommand(serverCmd, seedCmd, tokenCmd)

	err := rootCmd.Execute()
	if logger != nil {
		logger.Sync()
	}
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
