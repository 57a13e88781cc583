package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmcleod/newsdesk/session"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect the durable session",
	Long: `Commands operating on the remember-me session kept by the durable backend.
Ephemeral sessions live inside a running server and are not reachable here.`,
}

// sessionView is what "session show" prints. The token is included: it is
// not a credential the server checks.
type sessionView struct {
	Present   bool             `json:"present"`
	Expired   bool             `json:"expired,omitempty"`
	Corrupt   string           `json:"corrupt,omitempty"`
	Token     string           `json:"token,omitempty"`
	Principal *session.Profile `json:"principal,omitempty"`
	IssuedAt  *time.Time       `json:"issued_at,omitempty"`
	ExpiresAt *time.Time       `json:"expires_at,omitempty"`
}

// describeSession reads b without modifying it.
func describeSession(b session.Backend, now time.Time) (sessionView, error) {
	rec, err := b.Load()
	switch {
	case errors.Is(err, session.ErrNoSession):
		return sessionView{}, nil
	case errors.Is(err, session.ErrCorruptSession):
		return sessionView{Present: true, Corrupt: err.Error()}, nil
	case err != nil:
		return sessionView{}, err
	}
	return sessionView{
		Present:   true,
		Expired:   rec.Meta.Expired(now),
		Token:     rec.Token,
		Principal: &rec.Profile,
		IssuedAt:  &rec.Meta.IssuedAt,
		ExpiresAt: &rec.Meta.ExpiresAt,
	}, nil
}

func writeView(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var sessionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored remember-me session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, closeRepo, err := openDurable(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeRepo()

		view, err := describeSession(session.NewBackend(session.Durable, repo), time.Now())
		if err != nil {
			return fmt.Errorf("reading session: %w", err)
		}
		return writeView(cmd.OutOrStdout(), view)
	},
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored remember-me session",
	Long: `Removes the durable session keys. Running servers that already loaded the
session keep it in memory until their next read of storage.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, closeRepo, err := openDurable(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeRepo()

		if err := session.NewBackend(session.Durable, repo).Clear(); err != nil {
			return fmt.Errorf("clearing session: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "session cleared")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionClearCmd)
}
