package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/labextract/internal/config"
	"github.com/ehr/labextract/internal/domain/extraction"
	"github.com/ehr/labextract/internal/platform/auth"
	"github.com/ehr/labextract/internal/platform/db"
	"github.com/ehr/labextract/internal/platform/export"
)

// Output formats of the extract command.
const (
	formatJSON = "json"
	formatFHIR = "fhir"
	formatHL7  = "hl7"
	formatXLSX = "xlsx"
)

// localService builds a service over the configured engines with an
// in-memory repository, for one-shot CLI use.
func localService() (*extraction.Service, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	reg, err := buildRegistry(cfg, zerolog.Nop())
	if err != nil {
		return nil, err
	}
	return extraction.NewService(reg, cfg.DefaultEngine, extraction.NewRepoMemory(1), zerolog.Nop())
}

// readInput reads a file, or stdin when path is "-".
func readInput(path string, stdin io.Reader) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(stdin)
		return string(b), err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// render encodes an extraction in one of the output formats.
func render(e *extraction.Extraction, format string) ([]byte, error) {
	switch format {
	case formatJSON:
		return json.MarshalIndent(e, "", "  ")
	case formatFHIR:
		bundle, err := extraction.ToFHIRBundle(e)
		if err != nil {
			return nil, err
		}
		return json.MarshalIndent(bundle, "", "  ")
	case formatHL7:
		return extraction.EncodeHL7(e)
	case formatXLSX:
		return export.XLSX(e.ID.String(), e.Result)
	}
	return nil, fmt.Errorf("unknown format %q (want json, fhir, hl7 or xlsx)", format)
}

func extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Extract lab values from a report text file (\"-\" reads stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _ := cmd.Flags().GetString("engine")
			format, _ := cmd.Flags().GetString("format")
			out, _ := cmd.Flags().GetString("out")
			patient, _ := cmd.Flags().GetString("patient")

			if format == formatXLSX && out == "" {
				return fmt.Errorf("--out is required for xlsx output")
			}
			text, err := readInput(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			svc, err := localService()
			if err != nil {
				return err
			}
			e, err := svc.Extract(context.Background(), extraction.Request{Text: text, EngineID: engine, PatientRef: patient})
			if err != nil {
				return err
			}
			data, err := render(e, format)
			if err != nil {
				return err
			}
			if out == "" {
				_, err = cmd.OutOrStdout().Write(append(data, '\n'))
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Extracted %d value(s) with %s@%s to %s\n", e.ValueCount, e.EngineID, e.EngineVersion, out)
			return nil
		},
	}
	cmd.Flags().String("engine", "", "Engine id (default: auto-detect)")
	cmd.Flags().String("format", formatJSON, "Output format: json, fhir, hl7 or xlsx")
	cmd.Flags().String("out", "", "Write to this file instead of stdout")
	cmd.Flags().String("patient", "", "Patient reference recorded on the extraction")
	return cmd
}

func enginesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "engines",
		Short: "List registered extraction engines",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := localService()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tVERSION\tNAME\tCATEGORIES")
			for _, info := range svc.Engines() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", info.ID, info.Version, info.Name, strings.Join(info.Categories, ","))
			}
			return w.Flush()
		},
	}
}

func detectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect <file>",
		Short: "Score a report against every engine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			svc, err := localService()
			if err != nil {
				return err
			}
			resp, err := svc.Detect(text)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ENGINE\tSCORE")
			for _, d := range resp.Detections {
				fmt.Fprintf(w, "%s\t%.2f\n", d.EngineID, d.Score)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			note := ""
			if resp.Fallback {
				note = " (default engine, no confident match)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "selected: %s%s\n", resp.Selected, note)
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed bearer token for the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, _ := cmd.Flags().GetString("sub")
			roles, _ := cmd.Flags().GetStringSlice("roles")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if len(cfg.JWTSigningKey) < 32 {
				return fmt.Errorf("JWT_SIGNING_KEY must be set to at least 32 bytes")
			}
			now := time.Now()
			claims := auth.Claims{
				RegisteredClaims: jwt.RegisteredClaims{
					Subject:   subject,
					Issuer:    cfg.AuthIssuer,
					IssuedAt:  jwt.NewNumericDate(now),
					ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
				},
				Roles: roles,
			}
			if cfg.AuthAudience != "" {
				claims.Audience = jwt.ClaimStrings{cfg.AuthAudience}
			}
			token, err := auth.SignToken([]byte(cfg.JWTSigningKey), claims)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String("sub", "labextract-cli", "Token subject")
	cmd.Flags().StringSlice("roles", []string{auth.RoleLabTech}, "Roles granted by the token")
	cmd.Flags().Duration("ttl", time.Hour, "Token lifetime")
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrator, closeFn, err := newMigrator(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			count, err := migrator.Up(context.Background())
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (default: MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrator, closeFn, err := newMigrator(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			statuses, err := migrator.Status(context.Background())
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (default: MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func newMigrator(cmd *cobra.Command) (*db.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if !cfg.PersistenceEnabled() {
		return nil, nil, fmt.Errorf("DATABASE_URL is required for migrations")
	}
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		dir = cfg.MigrationsDir
	}
	pool, err := db.NewPool(context.Background(), cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return db.NewMigrator(pool, dir), pool.Close, nil
}
