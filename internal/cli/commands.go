package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"sysaura/internal/config"
	"sysaura/internal/logger"
	"sysaura/internal/models"
	"sysaura/internal/services"
	"sysaura/internal/store"

	"github.com/spf13/cobra"
)

// Command-specific flags
var (
	tokenUserFlag   string
	tokenRoleFlag   string
	tokenHostFlag   string
	configInitForce bool
	systemIDFlag    string
	systemNameFlag  string
	systemAddrFlag  string
	systemOwnerFlag string
	systemListOwner string
	userIDFlag      string
	userEmailFlag   string
	userRoleFlag    string
)

// tokenCmd issues a JWT. Token generation is CLI-only; the server exposes no
// endpoint for it.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an access token",
	Long: `Issue a signed token for the REST API and the /ws endpoint.

Examples:
  sysaura token --user-id alice
  sysaura token --user-id ops --role admin --host collector.example.com:5002`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runToken(cmd.OutOrStdout(), cfg, tokenUserFlag, tokenRoleFlag, tokenHostFlag)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default " + config.FileName,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConfigInit(cmd.OutOrStdout(), cfgFile, configInitForce)
	},
}

var systemCmd = &cobra.Command{
	Use:   "system",
	Short: "Manage monitored systems",
}

var systemAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a system",
	Long: `Register a remote system that agents report metrics for.

Examples:
  sysaura system add --id web-1 --name "Web 1" --owner alice --address 10.0.0.5`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(ctx context.Context, st *store.Store) error {
			return runSystemAdd(ctx, cmd.OutOrStdout(), st, models.Target{
				ID:      systemIDFlag,
				Name:    systemNameFlag,
				Address: systemAddrFlag,
				OwnerID: systemOwnerFlag,
			})
		})
	},
}

var systemListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered systems",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(ctx context.Context, st *store.Store) error {
			return runSystemList(ctx, cmd.OutOrStdout(), st, systemListOwner)
		})
	},
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a user who can own systems",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(ctx context.Context, st *store.Store) error {
			return runUserAdd(ctx, cmd.OutOrStdout(), st, userIDFlag, userEmailFlag, userRoleFlag)
		})
	},
}

func runToken(out io.Writer, cfg *config.Config, userID, role, host string) error {
	r, err := parseRole(role)
	if err != nil {
		return err
	}
	auth := services.NewAuthService(cfg.Auth.Secret, cfg.Auth.TokenExpiry, logger.New("[AUTH]"))
	token, err := auth.GenerateToken(models.Identity{UserID: userID, Role: r})
	if err != nil {
		return err
	}

	if host == "" {
		host = cfg.Server.Addr
		if strings.HasPrefix(host, ":") {
			host = "localhost" + host
		}
	}
	scheme := "ws"
	if cfg.Server.TLS.Enabled {
		scheme = "wss"
	}

	fmt.Fprintf(out, "token:   %s\n", token)
	fmt.Fprintf(out, "user:    %s (%s)\n", userID, r)
	fmt.Fprintf(out, "expires: %s\n", time.Now().Add(auth.TokenExpiry()).UTC().Format(time.RFC3339))
	fmt.Fprintf(out, "url:     %s://%s/ws?token=%s\n", scheme, host, token)
	return nil
}

func runConfigInit(out io.Writer, path string, force bool) error {
	if path == "" {
		path = config.FileName
	}
	if err := config.WriteDefault(path, force); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s\n", path)
	return nil
}

func runSystemAdd(ctx context.Context, out io.Writer, st *store.Store, t models.Target) error {
	if strings.TrimSpace(t.ID) == "" || strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: --id and --name are required", services.ErrInvalidInput)
	}
	if t.ID == models.LocalTargetID {
		return fmt.Errorf("%w: %q is reserved for the collector host", services.ErrInvalidInput, t.ID)
	}
	if err := st.CreateTarget(ctx, t); err != nil {
		return err
	}
	fmt.Fprintf(out, "registered system %s (%s)\n", t.ID, t.Name)
	return nil
}

func runSystemList(ctx context.Context, out io.Writer, st *store.Store, owner string) error {
	targets, err := st.Targets(ctx, owner)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tADDRESS\tOWNER\tSTATUS\tLAST SEEN")
	for _, t := range targets {
		seen := "-"
		if t.LastConnected != nil {
			seen = t.LastConnected.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", t.ID, t.Name, dash(t.Address), dash(t.OwnerID), t.Status, seen)
	}
	return w.Flush()
}

func runUserAdd(ctx context.Context, out io.Writer, st *store.Store, id, email, role string) error {
	r, err := parseRole(role)
	if err != nil {
		return err
	}
	if strings.TrimSpace(email) == "" {
		return fmt.Errorf("%w: --email is required", services.ErrInvalidInput)
	}
	if err := st.CreateUser(ctx, store.User{ID: id, Email: email, Role: string(r)}); err != nil {
		return err
	}
	fmt.Fprintf(out, "registered user %s (%s)\n", id, r)
	return nil
}

// withStore opens the configured database for one command.
func withStore(ctx context.Context, fn func(context.Context, *store.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer st.Close()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, st)
}

func parseRole(role string) (models.Role, error) {
	switch models.Role(role) {
	case "", models.RoleUser:
		return models.RoleUser, nil
	case models.RoleAdmin:
		return models.RoleAdmin, nil
	}
	return "", fmt.Errorf("%w: role must be %q or %q", services.ErrInvalidInput, models.RoleUser, models.RoleAdmin)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	// token command flags
	tokenCmd.Flags().StringVar(&tokenUserFlag, "user-id", "", "user the token is issued to")
	tokenCmd.Flags().StringVar(&tokenRoleFlag, "role", "user", "role claim (user or admin)")
	tokenCmd.Flags().StringVar(&tokenHostFlag, "host", "", "host:port shown in the WebSocket URL (default server.addr)")
	_ = tokenCmd.MarkFlagRequired("user-id")

	// config init flags
	configInitCmd.Flags().BoolVarP(&configInitForce, "force", "f", false, "overwrite existing config")

	// system flags
	systemAddCmd.Flags().StringVar(&systemIDFlag, "id", "", "system id")
	systemAddCmd.Flags().StringVar(&systemNameFlag, "name", "", "display name")
	systemAddCmd.Flags().StringVar(&systemAddrFlag, "address", "", "IP address")
	systemAddCmd.Flags().StringVar(&systemOwnerFlag, "owner", "", "owning user id")
	systemListCmd.Flags().StringVar(&systemListOwner, "owner", "", "only systems owned by this user")

	// user flags
	userAddCmd.Flags().StringVar(&userIDFlag, "id", "", "user id")
	userAddCmd.Flags().StringVar(&userEmailFlag, "email", "", "email address")
	userAddCmd.Flags().StringVar(&userRoleFlag, "role", "user", "role (user or admin)")
	_ = userAddCmd.MarkFlagRequired("id")

	// Register all commands
	configCmd.AddCommand(configInitCmd)
	systemCmd.AddCommand(systemAddCmd, systemListCmd)
	userCmd.AddCommand(userAddCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(systemCmd)
	rootCmd.AddCommand(userCmd)
}
