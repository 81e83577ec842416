package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/brogergvhs/mangapdf/internal/chapters"
	"github.com/brogergvhs/mangapdf/internal/config"
	"github.com/brogergvhs/mangapdf/internal/downloader"
	"github.com/brogergvhs/mangapdf/internal/pipeline"
	"github.com/brogergvhs/mangapdf/internal/ui"
	"github.com/brogergvhs/mangapdf/internal/util"

	"github.com/spf13/cobra"
)

var (
	// input
	flagURL  string
	flagName string

	// output
	flagOutput      string
	flagFormat      string
	flagStrategy    string
	flagAllowExt    string
	flagScratchDir  string
	flagKeepScratch bool
	flagNoProgress  bool

	// http
	flagTimeout    int
	flagCookie     string
	flagCookieFile string
	flagUserAgent  string
	flagCloudflare bool
)

func init() {
	downloadCmd := &cobra.Command{
		Use:   "download [url] [name]",
		Short: "Download one chapter page into a PDF. Uses the defaults from the selected config, overwritten by CLI flags",
		Args:  cobra.MaximumNArgs(2),
		RunE:  runDownload,
	}

	// input
	downloadCmd.Flags().StringVar(&flagURL, "url", "", "chapter page URL")
	downloadCmd.Flags().StringVarP(&flagName, "name", "n", "", "output file name (.pdf is appended when missing)")

	// output
	downloadCmd.Flags().StringVar(&flagOutput, "output", "", "output folder")
	downloadCmd.Flags().StringVar(&flagFormat, "format", "", "output format: pdf or cbz")
	downloadCmd.Flags().StringVar(&flagStrategy, "strategy", "", "image locator: class-marker, generic or script")
	downloadCmd.Flags().StringVar(&flagAllowExt, "allow-ext", "", "allowed image extensions for the generic locator (e.g. \"webp|jpg|png\")")
	downloadCmd.Flags().StringVar(&flagScratchDir, "scratch-dir", "", "root folder for temporary images")
	downloadCmd.Flags().BoolVar(&flagKeepScratch, "keep-scratch", false, "keep temporary images after a successful run")
	downloadCmd.Flags().BoolVar(&flagNoProgress, "no-progress", false, "disable the progress bar")

	// http
	downloadCmd.Flags().IntVar(&flagTimeout, "timeout", 0, "per-request timeout in seconds")
	downloadCmd.Flags().StringVar(&flagCookie, "cookie", "", "cookie string, e.g. \"key=value; other=123\"")
	downloadCmd.Flags().StringVar(&flagCookieFile, "cookie-file", "", "path to a text file with cookies (one header line)")
	downloadCmd.Flags().StringVar(&flagUserAgent, "user-agent", "", "override User-Agent")
	downloadCmd.Flags().BoolVar(&flagCloudflare, "cloudflare", false, "route requests through the Cloudflare bypass transport")

	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	a, err := newApp(config.Options{
		Output:           flagOutput,
		ScratchDir:       flagScratchDir,
		Format:           flagFormat,
		Strategy:         flagStrategy,
		KeepScratch:      flagKeepScratch,
		TimeoutSeconds:   flagTimeout,
		Cookie:           flagCookie,
		CookieFile:       flagCookieFile,
		UserAgent:        flagUserAgent,
		CloudflareBypass: flagCloudflare,
	})
	if err != nil {
		return err
	}
	defer a.Close()

	if flagAllowExt != "" {
		a.cfg.AllowExt = splitExt(flagAllowExt)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config file: %s\n", a.used)
	if a.cfg.Debug {
		fmt.Fprintln(out, "Full config:")
		a.cfg.Print(out)
		fmt.Fprintln(out)
	}

	ctx := context.Background()

	st, err := a.openStore(ctx)
	if err != nil {
		if a.cfg.RequireAuth {
			return err
		}
		a.log.Warnf("Download history disabled: %v\n", err)
	}

	if a.cfg.RequireAuth {
		user, err := a.authService(st).Authenticate(ctx, ui.Prompter{})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Authenticated as %s\n", user)
	}

	rawURL, name, err := downloadInputs(args)
	if err != nil {
		return err
	}

	tracker := util.NewScratchTracker(a.cfg.ScratchDir)
	util.SetupInterruptHandler(tracker)

	var pm *ui.ProgressManager
	extra := []pipeline.Option{pipeline.WithTracker(tracker)}
	if !flagNoProgress {
		pm = ui.NewProgressManager(out)
		extra = append(extra, pipeline.WithProgress(func(label string) downloader.Progress {
			return pm.Register(label)
		}))
	}

	var rec pipeline.Recorder
	if st != nil {
		rec = st
	}

	runner, asm, err := a.newRunner(rec, extra...)
	if err != nil {
		return err
	}

	req, err := chapters.NewRequest(rawURL, name, asm.Ext())
	if err != nil {
		return err
	}

	res, runErr := runner.Run(ctx, req)
	if pm != nil {
		pm.Close()
	}

	ui.Stats{
		Located:   len(res.Located),
		Retrieved: len(res.Retrieved),
		Failed:    len(res.Failed),
		Bytes:     res.Bytes,
		Output:    res.Output,
		Elapsed:   res.Elapsed,
	}.Print(out)

	if runErr != nil {
		var pe *pipeline.Error
		if errors.As(runErr, &pe) && pe.Kind == pipeline.AssemblyFailed {
			fmt.Fprintf(out, "Downloaded images were kept in %s\n", res.ScratchDir)
		}
		return runErr
	}

	fmt.Fprintln(out, "\nAll done.")
	return nil
}

// ask is swapped out in tests.
var ask = ui.Ask

// downloadInputs takes URL and name from flags, then positional args, then
// asks interactively.
func downloadInputs(args []string) (string, string, error) {
	rawURL, name := flagURL, flagName
	if rawURL == "" && len(args) > 0 {
		rawURL = args[0]
	}
	if name == "" && len(args) > 1 {
		name = args[1]
	}

	if rawURL == "" {
		v, err := ask("Chapter page URL")
		if err != nil {
			return "", "", fmt.Errorf("missing --url: %w", err)
		}
		rawURL = v
	}

	if name == "" && len(args) == 0 && flagURL == "" {
		v, err := ask("Output name (e.g. chapter-12.pdf)")
		if err != nil {
			return "", "", err
		}
		name = v
	}

	return rawURL, name, nil
}

func splitExt(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == '|' || r == ',' || r == ' '
	})

	out := []string{}
	for _, f := range fields {
		f = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(f), "."))
		if f != "" {
			out = append(out, f)
		}
	}

	return out
}
