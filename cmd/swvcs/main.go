package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"swvcs/internal/app"
	"swvcs/internal/config"
	"swvcs/internal/vcs"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp finds the repository from the --dir flag and creates an SWApp.
// The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Commit", "Revert").
func newApp(cmd *cobra.Command, operation string) (*app.SWApp, error) {
	dir, _ := cmd.Flags().GetString("dir")
	verbose, _ := cmd.Flags().GetBool("verbose")

	var echo io.Writer
	if verbose {
		echo = cmd.ErrOrStderr()
	}

	a, err := app.Open(dir, operation, echo)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

func printWarnings(w io.Writer, warnings []vcs.Warning) {
	for _, warn := range warnings {
		fmt.Fprintf(w, "%s %s\n", warnColor("warning:"), warn)
	}
}

var rootCmd = &cobra.Command{
	Use:          "swvcs",
	Short:        "Local version control for CAD documents",
	SilenceUsage: true,
}

// init command
var initCmd = &cobra.Command{
	Use:   "init [DIR]",
	Short: "Create a repository in DIR (default: current directory)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}
		projectDir, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("resolving path: %w", err)
		}

		cfg := config.NewConfig()
		cfg.Author, _ = cmd.Flags().GetString("author")
		cfg.Metadata.Type, _ = cmd.Flags().GetString("metadata")
		cfg.Host.Type, _ = cmd.Flags().GetString("host")
		if cmd.Flags().Changed("bridge-url") {
			cfg.Host.BridgeURL, _ = cmd.Flags().GetString("bridge-url")
		}
		cfg.Host.WorkingFile, _ = cmd.Flags().GetString("working-file")
		if cfg.Host.Type != "bridge" && !cmd.Flags().Changed("bridge-url") {
			cfg.Host.BridgeURL = ""
		}

		existed, err := app.Init(projectDir, cfg)
		if err != nil {
			return err
		}

		root := vcs.RootFor(projectDir)
		if existed {
			fmt.Fprintf(cmd.OutOrStdout(), "Reinitialized existing repository in %s\n", root)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized empty repository in %s\n", root)
		}
		return nil
	},
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show HEAD and the document open in the host",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Status")
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.Status()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Repository: %s\n", st.Root)
		if st.Head == nil {
			fmt.Fprintln(out, "HEAD:       (no commits)")
		} else {
			fmt.Fprintf(out, "HEAD:       %s %s (%s)\n",
				formatHash(st.Head.Hash, false), st.Head.Message, formatAge(st.Head, time.Now()))
		}
		fmt.Fprintf(out, "Commits:    %d\n", st.CommitCount)

		switch {
		case st.HostType == "none":
			fmt.Fprintln(out, "Host:       none")
		case st.HostErr != nil:
			fmt.Fprintf(out, "Host:       %s (%s)\n", st.HostType, errColor(st.HostErr))
		default:
			fmt.Fprintf(out, "Host:       %s\n", st.HostType)
			if st.Active == nil {
				fmt.Fprintln(out, "Document:   (none open)")
			} else {
				dirty := ""
				if st.Active.IsDirty {
					dirty = " " + warnColor("(modified)")
				}
				fmt.Fprintf(out, "Document:   %s [%s]%s\n", formatText(st.Active.Path), st.Active.Kind, dirty)
			}
		}
		return nil
	},
}

// commit command
var commitCmd = &cobra.Command{
	Use:   "commit MESSAGE...",
	Short: "Snapshot the active document",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		noThumbnail, _ := cmd.Flags().GetBool("no-thumbnail")
		file, _ := cmd.Flags().GetString("file")
		message := strings.Join(args, " ")

		a, err := newApp(cmd, "Commit")
		if err != nil {
			return err
		}
		defer a.Close()

		var res *vcs.CommitResult
		if file != "" {
			res, err = a.CommitFile(file, message)
		} else {
			res, err = a.Commit(message, !noThumbnail)
		}
		if err != nil {
			return fmt.Errorf("commit failed: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "[%s] %s\n", formatHash(res.Commit.Hash, false), res.Commit.Message)
		fmt.Fprintf(out, " %s, %s\n", formatText(res.Commit.Meta.DocPath), formatSize(res.Commit.Meta.BlobSizeBytes))
		if res.Replaced {
			fmt.Fprintln(out, " content unchanged; existing commit updated")
		} else if res.BlobReused {
			fmt.Fprintln(out, " content already stored; blob reused")
		}
		printWarnings(cmd.ErrOrStderr(), res.Warnings)
		return nil
	},
}

// log command
var logCmd = &cobra.Command{
	Use:   "log",
	Short: "List commits, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		full, _ := cmd.Flags().GetBool("full")
		follow, _ := cmd.Flags().GetBool("follow")

		state := &logState{seen: make(map[string]bool)}
		if err := printLog(cmd, full, state); err != nil {
			return err
		}
		if !follow {
			return nil
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		dir, _ := cmd.Flags().GetString("dir")
		projectDir, err := app.FindProjectDir(dir)
		if err != nil {
			return err
		}
		return app.WatchRepository(ctx, projectDir, app.DefaultDebounce, func() {
			if err := printLog(cmd, full, state); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", errColor("error:"), err)
			}
		})
	},
}

// logState remembers what a following log has already printed.
type logState struct {
	seen    map[string]bool
	head    string
	printed bool
}

// printLog prints commits not yet seen. The app is reopened on every call
// so a follower never holds the store open between refreshes.
func printLog(cmd *cobra.Command, full bool, state *logState) error {
	a, err := newApp(cmd, "Log")
	if err != nil {
		return err
	}
	defer a.Close()

	commits, err := a.Log()
	if err != nil {
		return err
	}
	head, err := a.Head()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !state.printed && len(commits) == 0 {
		fmt.Fprintln(out, "No commits yet.")
		state.printed = true
		return nil
	}

	var fresh []*vcs.Commit
	for _, c := range commits {
		if !state.seen[c.Hash] {
			fresh = append(fresh, c)
			state.seen[c.Hash] = true
		}
	}
	// Later refreshes append below earlier output, so print those oldest first.
	if state.printed {
		slices.Reverse(fresh)
	}
	for _, c := range fresh {
		fmt.Fprintf(out, "%s %s  %s  %-12s %s\n",
			headMarker(c.Hash == head), formatHash(c.Hash, full), formatTime(c), formatText(c.Author), c.Message)
	}
	if state.printed && len(fresh) == 0 && head != "" && head != state.head {
		fmt.Fprintf(out, "HEAD is now %s\n", formatHash(head, full))
	}
	state.head = head
	state.printed = true
	return nil
}

// show command
var showCmd = &cobra.Command{
	Use:   "show HASH",
	Short: "Show one commit and its metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asYAML, _ := cmd.Flags().GetBool("yaml")

		a, err := newApp(cmd, "Show")
		if err != nil {
			return err
		}
		defer a.Close()

		d, err := a.Show(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asYAML {
			data, err := yaml.Marshal(showDocument{
				Commit:      d.Commit,
				IsHead:      d.IsHead,
				BlobPresent: d.BlobPresent,
				PreviewPath: d.PreviewPath,
			})
			if err != nil {
				return fmt.Errorf("encoding commit: %w", err)
			}
			_, err = out.Write(data)
			return err
		}

		c, m := d.Commit, d.Commit.Meta
		head := ""
		if d.IsHead {
			head = " " + headColor("(HEAD)")
		}
		parent := unavailable
		if c.ParentHash != "" {
			parent = formatHash(c.ParentHash, false)
		}
		blob := "present"
		if !d.BlobPresent {
			blob = errColor("missing")
		}

		fmt.Fprintf(out, "commit %s%s\n", formatHash(c.Hash, true), head)
		fmt.Fprintf(out, "Parent:        %s\n", parent)
		fmt.Fprintf(out, "Author:        %s\n", formatText(c.Author))
		fmt.Fprintf(out, "Date:          %s\n", formatTime(c))
		fmt.Fprintf(out, "\n    %s\n\n", c.Message)
		fmt.Fprintf(out, "Document:      %s\n", formatText(m.DocPath))
		fmt.Fprintf(out, "Type:          %s\n", formatText(m.DocType))
		fmt.Fprintf(out, "Mass:          %s\n", formatQuantity(m.Mass, "kg"))
		fmt.Fprintf(out, "Volume:        %s\n", formatQuantity(m.Volume, "m^3"))
		fmt.Fprintf(out, "Surface area:  %s\n", formatQuantity(m.SurfaceArea, "m^2"))
		fmt.Fprintf(out, "Features:      %s\n", formatCount(m.FeatureCount))
		fmt.Fprintf(out, "Material:      %s\n", formatText(m.Material))
		fmt.Fprintf(out, "Bounding box:  %s\n", formatExtents(m))
		fmt.Fprintf(out, "Configs:       %s\n", formatCount(m.ConfigCount))
		fmt.Fprintf(out, "Size:          %s\n", formatSize(m.BlobSizeBytes))
		fmt.Fprintf(out, "Blob:          %s\n", blob)
		fmt.Fprintf(out, "Preview:       %s\n", formatText(d.PreviewPath))
		return nil
	},
}

// showDocument is the YAML shape of `show --yaml`.
type showDocument struct {
	Commit      *vcs.Commit `yaml:"commit"`
	IsHead      bool        `yaml:"is_head"`
	BlobPresent bool        `yaml:"blob_present"`
	PreviewPath string      `yaml:"preview_path,omitempty"`
}

// revert command
var revertCmd = &cobra.Command{
	Use:   "revert HASH",
	Short: "Restore the working file to a commit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")

		a, err := newApp(cmd, "Revert")
		if err != nil {
			return err
		}
		defer a.Close()

		target, err := a.Resolve(args[0])
		if err != nil {
			return err
		}

		if !yes {
			if !term.IsTerminal(int(os.Stdin.Fd())) {
				return fmt.Errorf("refusing to revert without confirmation; pass --yes")
			}
			ok, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf(
				"Revert to %s %q? Unsaved changes in the open document will be lost. [y/N] ",
				formatHash(target.Hash, false), target.Message))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Revert cancelled.")
				return nil
			}
		}

		res, err := a.Revert(target.Hash)
		if err != nil {
			return fmt.Errorf("revert failed: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "HEAD is now %s %s\n", formatHash(res.Commit.Hash, false), res.Commit.Message)
		fmt.Fprintf(out, "Restored %s\n", res.RestoredPath)
		if res.Reopened {
			fmt.Fprintln(out, "Reopened document in host")
		}
		printWarnings(cmd.ErrOrStderr(), res.Warnings)
		return nil
	},
}

// confirm asks a yes/no question and reads one line of answer.
func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("reading answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		projectDir, err := app.FindProjectDir(dir)
		if err != nil {
			return err
		}

		path := app.ConfigPath(projectDir)
		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		author := cfg.Author
		if author == "" {
			author = app.DefaultAuthor() + " (from environment)"
		}
		timeout := "none"
		if cfg.Host.TimeoutSeconds > 0 {
			timeout = (time.Duration(cfg.Host.TimeoutSeconds) * time.Second).String()
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Configuration from %s:\n\n", path)
		fmt.Fprintf(out, "Author:       %s\n", author)
		fmt.Fprintf(out, "Metadata:     %s\n", cfg.Metadata.Type)
		fmt.Fprintf(out, "Host:         %s\n", cfg.Host.Type)
		switch cfg.Host.Type {
		case "bridge":
			fmt.Fprintf(out, "Bridge URL:   %s\n", cfg.Host.BridgeURL)
			fmt.Fprintf(out, "Timeout:      %s\n", timeout)
		case "file":
			fmt.Fprintf(out, "Working file: %s\n", cfg.Host.WorkingFile)
		}
		fmt.Fprintf(out, "Log level:    %s\n", cfg.Log.Level)
		fmt.Fprintf(out, "Log dir:      %s\n", app.LogDir(cfg, projectDir))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("dir", "C", ".", "Run as if started in this directory")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Echo log lines to stderr")

	// init flags
	initCmd.Flags().String("metadata", config.DefaultMetadataType, "Metadata backend: sqlite, json, badger or memory")
	initCmd.Flags().String("host", config.DefaultHostType, "Document host: bridge, file or none")
	initCmd.Flags().String("bridge-url", config.DefaultBridgeURL, "Automation bridge URL (bridge host)")
	initCmd.Flags().String("working-file", "", "Working file path (file host)")
	initCmd.Flags().String("author", "", "Author recorded on commits (default: OS user)")

	// config subcommands
	configCmd.AddCommand(configListCmd)

	// root commands
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(commitCmd)
	commitCmd.Flags().Bool("no-thumbnail", false, "Do not capture a preview image")
	commitCmd.Flags().String("file", "", "Snapshot this file directly instead of the host's active document")
	rootCmd.AddCommand(logCmd)
	logCmd.Flags().Bool("full", false, "Show full hashes")
	logCmd.Flags().BoolP("follow", "f", false, "Keep running and print new commits as they appear")
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().Bool("yaml", false, "Print the commit as YAML")
	rootCmd.AddCommand(revertCmd)
	revertCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	rootCmd.AddCommand(configCmd)
}
