package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmcleod/newsdesk/directory"
)

var directoryCmd = &cobra.Command{
	Use:   "directory",
	Short: "Admin directory tools",
}

type checkResult struct {
	Name   string `json:"name"`
	Status string `json:"status"` // "pass", "fail", "warn"
	Detail string `json:"detail,omitempty"`
}

type directoryReport struct {
	File       string                `json:"file"`
	Valid      bool                  `json:"valid"`
	Principals []directory.Principal `json:"principals,omitempty"`
	Checks     []checkResult         `json:"checks"`
}

// minSecretLen is only advisory; secrets are compared as stored.
const minSecretLen = 8

func checkDirectory(file string, data []byte) directoryReport {
	report := directoryReport{File: file, Valid: true}

	dir, err := directory.Parse(data)
	if err != nil {
		report.Valid = false
		report.Checks = append(report.Checks, checkResult{
			Name: "parse", Status: "fail", Detail: err.Error(),
		})
		return report
	}
	report.Checks = append(report.Checks, checkResult{Name: "parse", Status: "pass"})
	report.Principals = dir.Principals()

	hasSuper := false
	for _, p := range report.Principals {
		if p.Role == directory.RoleSuperAdmin {
			hasSuper = true
			break
		}
	}
	if hasSuper {
		report.Checks = append(report.Checks, checkResult{Name: "super_admin_present", Status: "pass"})
	} else {
		report.Checks = append(report.Checks, checkResult{
			Name: "super_admin_present", Status: "warn", Detail: "no principal has the super_admin role",
		})
	}

	var short []string
	for _, p := range report.Principals {
		full, _ := dir.Lookup(p.ID)
		if len(full.Secret) < minSecretLen {
			short = append(short, full.Username)
		}
	}
	if len(short) == 0 {
		report.Checks = append(report.Checks, checkResult{Name: "secret_length", Status: "pass"})
	} else {
		report.Checks = append(report.Checks, checkResult{
			Name:   "secret_length",
			Status: "warn",
			Detail: fmt.Sprintf("secrets shorter than %d characters: %v", minSecretLen, short),
		})
	}
	return report
}

var directoryCheckCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Validate a directory file",
	Long: `Parses a principals YAML file and reports problems. Defaults to the
configured directory file. Exits non-zero when the file is invalid.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file := cfg.DirectoryFile
		if len(args) == 1 {
			file = args[0]
		}
		if file == "" {
			return fmt.Errorf("no directory file given and NEWSDESK_DIRECTORY_FILE is unset")
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("reading directory file: %w", err)
		}
		report := checkDirectory(file, data)
		if err := writeView(cmd.OutOrStdout(), report); err != nil {
			return err
		}
		if !report.Valid {
			return fmt.Errorf("directory file %s is invalid", file)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(directoryCmd)
	directoryCmd.AddCommand(directoryCheckCmd)
}
