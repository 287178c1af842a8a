package cmd

import (
	"context"
	"io"
	"os"

	"github.com/quantmind-br/qpm/internal/config"
	"github.com/quantmind-br/qpm/internal/core"
	"github.com/quantmind-br/qpm/internal/db"
	"github.com/quantmind-br/qpm/internal/fetch"
	"github.com/quantmind-br/qpm/internal/helpers"
	"github.com/quantmind-br/qpm/internal/installer"
	"github.com/quantmind-br/qpm/internal/integrity"
	"github.com/quantmind-br/qpm/internal/paths"
	"github.com/quantmind-br/qpm/internal/sandbox"
	"github.com/quantmind-br/qpm/internal/selfupdate"
	"github.com/quantmind-br/qpm/internal/store"
	"github.com/quantmind-br/qpm/internal/ui"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// Deps carries what the commands need. Nil collaborators are built from
// Config when first used; tests set them to fakes.
type Deps struct {
	Config  *config.Config
	Paths   *paths.Resolver
	Log     *zerolog.Logger
	Version string

	Fs       afero.Fs
	Fetcher  fetch.Fetcher
	Runner   sandbox.Runner
	Verifier installer.Verifier
	Commands helpers.CommandRunner
	Launcher selfupdate.Launcher
	Prompter ui.Prompter
	// Exit terminates the process after a self-update hand-off
	Exit func(code int)
}

func (d *Deps) fs() afero.Fs {
	if d.Fs == nil {
		d.Fs = afero.NewOsFs()
	}
	return d.Fs
}

func (d *Deps) logger() *zerolog.Logger {
	if d.Log == nil {
		nop := zerolog.Nop()
		d.Log = &nop
	}
	return d.Log
}

func (d *Deps) store() *store.PackageStore {
	return store.New(d.fs(), d.Paths.StoreDir(), d.Config.Install.ManifestFile, d.logger())
}

func (d *Deps) fetcher(progress io.Writer) fetch.Fetcher {
	if d.Fetcher != nil {
		return d.Fetcher
	}
	opts := []fetch.Option{fetch.WithFs(d.fs())}
	if d.Config.Network.Timeout > 0 {
		opts = append(opts, fetch.WithTimeout(d.Config.Network.Timeout))
	}
	if d.Config.Network.UserAgent != "" {
		opts = append(opts, fetch.WithUserAgent(d.Config.Network.UserAgent))
	}
	if d.Config.Network.Progress && progress != nil {
		opts = append(opts, fetch.WithProgress(progress))
	}
	return fetch.NewHTTPFetcher(opts...)
}

func (d *Deps) commands() helpers.CommandRunner {
	if d.Commands == nil {
		d.Commands = helpers.NewOSCommandRunner()
	}
	return d.Commands
}

func (d *Deps) runner() sandbox.Runner {
	if d.Runner != nil {
		return d.Runner
	}
	return sandbox.NewProcessRunner(d.commands(), d.Config.Install.ScriptTimeout, d.logger())
}

func (d *Deps) launcher() selfupdate.Launcher {
	if d.Launcher != nil {
		return d.Launcher
	}
	return selfupdate.ProcessLauncher{}
}

func (d *Deps) prompter() ui.Prompter {
	if d.Prompter != nil {
		return d.Prompter
	}
	return ui.TerminalPrompter{}
}

func (d *Deps) exit(code int) {
	if d.Exit != nil {
		d.Exit(code)
		return
	}
	os.Exit(code)
}

func (d *Deps) algorithm() (integrity.Algorithm, error) {
	return integrity.ParseAlgorithm(d.Config.Install.ChecksumAlgorithm)
}

// openJournal opens the history database. The journal is an audit trail
// only, so failures are logged and a nil journal is returned.
func (d *Deps) openJournal(ctx context.Context) *db.DB {
	journal, err := db.New(ctx, d.Paths.DBFile())
	if err != nil {
		d.logger().Warn().Err(err).Str("path", d.Paths.DBFile()).Msg("history journal unavailable")
		return nil
	}
	return journal
}

func closeJournal(journal *db.DB, log *zerolog.Logger) {
	if journal == nil {
		return
	}
	if err := journal.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close history journal")
	}
}

// recordEvent appends ev to journal when one is open
func recordEvent(ctx context.Context, journal *db.DB, log *zerolog.Logger, ev core.Event) {
	if journal == nil {
		return
	}
	if err := journal.Record(ctx, ev); err != nil {
		log.Warn().Err(err).Str("action", ev.Action).Msg("failed to record history")
	}
}

func (d *Deps) newInstaller(cmd *cobra.Command, journal *db.DB, extra ...installer.Option) (*installer.Installer, error) {
	algo, err := d.algorithm()
	if err != nil {
		return nil, err
	}
	opts := []installer.Option{
		installer.WithFs(d.fs()),
		installer.WithAlgorithm(algo),
		installer.WithTempDir(d.Paths.TempDir()),
	}
	if journal != nil {
		opts = append(opts, installer.WithJournal(journal))
	}
	if d.Verifier != nil {
		opts = append(opts, installer.WithVerifier(d.Verifier))
	}
	opts = append(opts, extra...)
	return installer.New(d.store(), d.fetcher(cmd.ErrOrStderr()), d.runner(), d.logger(), opts...), nil
}

func printer(cmd *cobra.Command) *ui.Printer {
	return ui.NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr())
}
