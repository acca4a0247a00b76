package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"pcc-go/internal/app"
	"pcc-go/internal/config"
	"pcc-go/internal/detect"
	"pcc-go/internal/model"
	"pcc-go/internal/pcc"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// idgen generates project IDs for `config init`.
var idgen pcc.IDGenerator = pcc.UUIDGenerator{}

// newApp reads the config and creates an App. The caller must defer a.Close().
// operation identifies the CLI command being run (e.g. "Upload", "Update").
func newApp(cmd *cobra.Command, operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if project, _ := cmd.Flags().GetString("project"); project != "" {
		cfg.ProjectID = project
	}

	a, err := app.NewApp(cmd.Context(), cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// promptPassphrase reads a passphrase from the terminal without echo.
// When confirm is true it prompts twice and requires both entries to match.
func promptPassphrase(confirm bool) (string, error) {
	fmt.Fprint(os.Stderr, "Passphrase: ")
	first, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}

	if confirm {
		fmt.Fprint(os.Stderr, "Confirm passphrase: ")
		second, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		if string(first) != string(second) {
			return "", fmt.Errorf("passphrases do not match")
		}
	}

	return string(first), nil
}

// maybePassphrase prompts for a passphrase only when the store is encrypted.
func maybePassphrase(a *app.App) (string, error) {
	if !a.EncryptionConfigured() {
		return "", nil
	}
	return promptPassphrase(false)
}

var rootCmd = &cobra.Command{
	Use:   "pcc",
	Short: "Project context cache",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		projectID, _ := cmd.Flags().GetString("project")
		if projectID == "" {
			projectID = idgen.New()
		}

		cfg := config.NewConfig(projectID, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Project ID: %s\n", projectID)
		fmt.Printf("Base Dir:   %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Project ID: %s\n", cfg.ProjectID)
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		if len(cfg.Stores) > 0 {
			fmt.Printf("Store:      %s (%s)\n", cfg.Stores[0].Name, cfg.Stores[0].Type)
		}
		fmt.Printf("Encryption: %s\n", cfg.Encryption.Type)
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage encryption keys",
}

var configKeysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate an encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "SetupEncryption")
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase, err := promptPassphrase(true)
		if err != nil {
			return err
		}

		if err := a.SetupEncryption(passphrase); err != nil {
			return fmt.Errorf("setting up encryption: %w", err)
		}
		fmt.Println("Encryption keys generated.")
		return nil
	},
}

// find command
var findCmd = &cobra.Command{
	Use:   "find",
	Short: "Find the best cached context for a commit",
	RunE: func(cmd *cobra.Command, args []string) error {
		branch, _ := cmd.Flags().GetString("branch")
		commit, _ := cmd.Flags().GetString("commit")
		parent, _ := cmd.Flags().GetString("parent")
		workspace, _ := cmd.Flags().GetString("workspace")

		a, err := newApp(cmd, "Find")
		if err != nil {
			return err
		}
		defer a.Close()

		if workspace != "" && (commit == "" || parent == "") {
			info, err := detect.CaptureGitInfo(cmd.Context(), workspace, "HEAD")
			if err != nil {
				return err
			}
			if commit == "" {
				commit = info.CommitSHA
			}
			if parent == "" {
				parent = info.ParentCommit
			}
			if branch == "" {
				branch, _ = detect.CurrentBranch(cmd.Context(), workspace)
			}
		}

		result, err := a.Find(cmd.Context(), branch, commit, parent, workspace)
		if err != nil {
			return err
		}

		if !result.Found {
			fmt.Println("No cached context found: full analysis required.")
			fmt.Printf("Strategy: %s\n", result.Strategy)
			return nil
		}

		fmt.Printf("Strategy:        %s\n", result.Strategy)
		fmt.Printf("Resolved commit: %s\n", result.ResolvedCommit)
		if result.BaseBranch != "" {
			fmt.Printf("Base branch:     %s\n", result.BaseBranch)
		}
		if result.Similarity > 0 {
			fmt.Printf("Similarity:      %.3f\n", result.Similarity)
		}
		return nil
	},
}

// fork command
var forkCmd = &cobra.Command{
	Use:   "fork BRANCH",
	Short: "Record where a branch was cut from",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		baseBranch, _ := cmd.Flags().GetString("base-branch")
		baseCommit, _ := cmd.Flags().GetString("base-commit")
		createdBy, _ := cmd.Flags().GetString("created-by")

		a, err := newApp(cmd, "RecordFork")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Fork(cmd.Context(), args[0], baseBranch, baseCommit, createdBy); err != nil {
			return fmt.Errorf("recording fork: %w", err)
		}
		fmt.Printf("Recorded fork of %s from %s@%s\n", args[0], baseBranch, baseCommit)
		return nil
	},
}

// upload command
var uploadCmd = &cobra.Command{
	Use:   "upload DIR",
	Short: "Upload a context directory as a commit snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		branch, _ := cmd.Flags().GetString("branch")
		commit, _ := cmd.Flags().GetString("commit")
		workspace, _ := cmd.Flags().GetString("workspace")

		a, err := newApp(cmd, "Upload")
		if err != nil {
			return err
		}
		defer a.Close()

		dir, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolving path: %w", err)
		}

		var gitInfo model.GitInfo
		if workspace != "" {
			rev := commit
			if rev == "" {
				rev = "HEAD"
			}
			info, err := detect.CaptureGitInfo(cmd.Context(), workspace, rev)
			if err != nil {
				return err
			}
			gitInfo = *info
			if commit == "" {
				commit = info.CommitSHA
			}
			if branch == "" {
				branch, _ = detect.CurrentBranch(cmd.Context(), workspace)
			}
		}

		stats, err := a.Upload(cmd.Context(), pcc.UploadRequest{
			Branch:       branch,
			CommitSHA:    commit,
			LocalDir:     dir,
			AnalysisKind: model.AnalysisFull,
			GitInfo:      gitInfo,
		})
		if err != nil {
			a.SetStatus("error")
			return fmt.Errorf("upload failed: %w", err)
		}

		fmt.Printf("Uploaded %d file(s): %d new, %d updated, %d inherited (dedup %.1f%%)\n",
			stats.TotalFiles, stats.NewFiles, stats.UpdatedFiles, stats.InheritedFiles,
			stats.DeduplicationRatio*100)
		return nil
	},
}

// download command
var downloadCmd = &cobra.Command{
	Use:   "download DEST",
	Short: "Download a commit snapshot into a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		branch, _ := cmd.Flags().GetString("branch")
		commit, _ := cmd.Flags().GetString("commit")

		a, err := newApp(cmd, "Download")
		if err != nil {
			return err
		}
		defer a.Close()

		dest, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolving path: %w", err)
		}

		passphrase, err := maybePassphrase(a)
		if err != nil {
			return err
		}

		result, err := a.Download(cmd.Context(), branch, commit, dest, passphrase)
		if result == nil {
			a.SetStatus("error")
			return fmt.Errorf("download failed: %w", err)
		}

		fmt.Printf("Downloaded %d file(s), %d already present\n", result.Downloaded, result.Skipped)
		for p, ferr := range result.Failed {
			fmt.Fprintf(os.Stderr, "failed: %s: %v\n", p, ferr)
		}
		// A partial result still counts as a failed download: err carries
		// the per-file failures or the caller's cancellation.
		if err != nil {
			a.SetStatus("error")
			return fmt.Errorf("download failed: %w", err)
		}
		return nil
	},
}

// latest command
var latestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Show the most recent analyzed commit on a branch",
	RunE: func(cmd *cobra.Command, args []string) error {
		branch, _ := cmd.Flags().GetString("branch")

		a, err := newApp(cmd, "GetBranchLatest")
		if err != nil {
			return err
		}
		defer a.Close()

		latest, err := a.Latest(cmd.Context(), branch)
		if err != nil {
			if pcc.IsNotFound(err) {
				fmt.Printf("No analyzed commits on branch %s.\n", branch)
				return nil
			}
			return err
		}

		fmt.Printf("Branch:     %s\n", branch)
		fmt.Printf("Commit:     %s\n", latest.CommitSHA)
		fmt.Printf("Kind:       %s\n", latest.AnalysisKind)
		fmt.Printf("Created at: %s\n", latest.CreatedAt.Format("2006-01-02 15:04:05"))
		return nil
	},
}

// update command
var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Run an incremental context update for the current commit",
	RunE: func(cmd *cobra.Command, args []string) error {
		branch, _ := cmd.Flags().GetString("branch")
		commit, _ := cmd.Flags().GetString("commit")
		workspace, _ := cmd.Flags().GetString("workspace")
		contextDir, _ := cmd.Flags().GetString("context-dir")

		a, err := newApp(cmd, "Update")
		if err != nil {
			return err
		}
		defer a.Close()

		workspace, err = filepath.Abs(workspace)
		if err != nil {
			return fmt.Errorf("resolving workspace: %w", err)
		}
		contextDir, err = filepath.Abs(contextDir)
		if err != nil {
			return fmt.Errorf("resolving context dir: %w", err)
		}

		rev := commit
		if rev == "" {
			rev = "HEAD"
		}
		info, err := detect.CaptureGitInfo(cmd.Context(), workspace, rev)
		if err != nil {
			return err
		}
		if commit == "" {
			commit = info.CommitSHA
		}
		if branch == "" {
			branch, err = detect.CurrentBranch(cmd.Context(), workspace)
			if err != nil {
				return err
			}
		}

		base, err := a.Find(cmd.Context(), branch, commit, info.ParentCommit, workspace)
		if err != nil {
			return fmt.Errorf("resolving base context: %w", err)
		}
		if !base.Found {
			return fmt.Errorf("no cached base context for %s@%s: run a full analysis and upload it", branch, commit)
		}
		if base.Strategy == model.StrategyExact {
			fmt.Printf("Commit %s is already analyzed.\n", commit)
			return nil
		}

		passphrase, err := maybePassphrase(a)
		if err != nil {
			return err
		}

		result, err := a.Update(cmd.Context(), pcc.IncrementalRequest{
			Branch:       branch,
			CommitSHA:    commit,
			Base:         *base,
			WorkspaceDir: workspace,
			ContextDir:   contextDir,
			GitInfo:      *info,
		}, passphrase)
		if err != nil {
			a.SetStatus("error")
			return fmt.Errorf("incremental update failed: %w", err)
		}

		fmt.Printf("Base: %s (%s)\n", base.ResolvedCommit, base.Strategy)
		fmt.Printf("Re-analyzed modules: %s\n", strings.Join(result.AffectedModules, ", "))
		if len(result.FailedModules) > 0 {
			fmt.Printf("Failed modules: %s (kept base documents)\n", strings.Join(result.FailedModules, ", "))
		}
		fmt.Printf("Uploaded %d file(s) (dedup %.1f%%)\n",
			result.Stats.TotalFiles, result.Stats.DeduplicationRatio*100)
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View transfer operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd, "GetHistory")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.History(limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No transfer operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt.Valid {
				d := op.FinishedAt.Time.Sub(op.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-12s  %s  %-8s  %s\n",
				op.ID,
				op.Operation,
				op.StartedAt.Format("2006-01-02 15:04:05"),
				op.Status,
				duration,
			)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("project", "", "Project ID (overrides config)")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configKeysCmd)
	configKeysCmd.AddCommand(configKeysInitCmd)

	// find
	findCmd.Flags().String("branch", "", "Branch name")
	findCmd.Flags().String("commit", "", "Commit SHA (default: HEAD of --workspace)")
	findCmd.Flags().String("parent", "", "Parent commit SHA")
	findCmd.Flags().String("workspace", "", "Git checkout used for git info and similarity scan")

	// fork
	forkCmd.Flags().String("base-branch", "", "Branch this branch was cut from")
	forkCmd.Flags().String("base-commit", "", "Commit this branch was cut at")
	forkCmd.Flags().String("created-by", "", "Who or what recorded the fork")
	forkCmd.MarkFlagRequired("base-branch")
	forkCmd.MarkFlagRequired("base-commit")

	// upload
	uploadCmd.Flags().String("branch", "", "Branch name")
	uploadCmd.Flags().String("commit", "", "Commit SHA")
	uploadCmd.Flags().String("workspace", "", "Git checkout used to capture commit details")

	// download
	downloadCmd.Flags().String("branch", "", "Branch name")
	downloadCmd.Flags().String("commit", "", "Commit SHA")
	downloadCmd.MarkFlagRequired("branch")
	downloadCmd.MarkFlagRequired("commit")

	// latest
	latestCmd.Flags().String("branch", "", "Branch name")
	latestCmd.MarkFlagRequired("branch")

	// update
	updateCmd.Flags().String("branch", "", "Branch name (default: current branch)")
	updateCmd.Flags().String("commit", "", "Commit SHA (default: HEAD)")
	updateCmd.Flags().String("workspace", ".", "Git checkout to analyze")
	updateCmd.Flags().String("context-dir", "", "Directory holding analysis artifacts")
	updateCmd.MarkFlagRequired("context-dir")

	// history
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(forkCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(latestCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(historyCmd)
}
