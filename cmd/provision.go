package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/spf13/cobra"

	"devstrap/internal/catalog"
	"devstrap/internal/extract"
	"devstrap/internal/fetch"
	"devstrap/internal/install"
	"devstrap/internal/links"
	"devstrap/internal/options"
	"devstrap/internal/profile"
	"devstrap/internal/provision"
	"devstrap/internal/verify"
)

// optionsFile is the path of the desired-state document, passed via
// --options-file. A missing or broken file never fails the run; the resolver
// substitutes and persists the built-in defaults.
var optionsFile string

// newOrchestrator builds the full collaborator graph for a run against the
// desired state at optionsFile.
func newOrchestrator() (*provision.Orchestrator, error) {
	cat, err := catalog.Load()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", provision.ErrMissingComponent, err)
	}
	state := options.Load(optionsFile)
	root := state.RootDir()

	bin, err := links.Open(filepath.Join(root, "tools", "bin"))
	if err != nil {
		return nil, err
	}
	frags := &profile.Fragments{Dir: filepath.Join(root, "scripts")}

	installer := &install.Installer{
		Root:      root,
		Fetcher:   fetch.New(),
		Extractor: extract.NewSelector(),
		Probe:     install.MarkerProbe{},
		Bin:       bin,
		Frags:     frags,
	}
	publisher := &profile.Publisher{Home: xdg.Home, Root: root, Fragments: frags}

	return &provision.Orchestrator{
		State:     state,
		Catalog:   cat,
		Installer: installer,
		Publisher: publisher,
		Reporter:  verify.New(bin),
	}, nil
}

// provisionCmd runs the full sequence: every enabled category, then profile
// publishing and the closing verification report.
var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Provision the environment to match the options file",
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := newOrchestrator()
		if err != nil {
			return err
		}
		_, err = o.Run()
		return err
	},
}

// Granular sub-commands limit the run to one category by switching the
// others off in the resolved desired state; everything downstream (profile,
// verification) behaves exactly as in a full run.

var provisionGitCmd = &cobra.Command{
	Use:   "git",
	Short: "Provision only version control",
	RunE:  runCategory(func(s *options.DesiredState) { keepOnly(s, "git") }),
}

var provisionTerminalCmd = &cobra.Command{
	Use:   "terminal",
	Short: "Provision only the terminal",
	RunE:  runCategory(func(s *options.DesiredState) { keepOnly(s, "terminal") }),
}

var provisionEditorsCmd = &cobra.Command{
	Use:   "editors",
	Short: "Provision only the editors",
	RunE:  runCategory(func(s *options.DesiredState) { keepOnly(s, "editors") }),
}

var provisionToolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Provision only the CLI utilities",
	RunE:  runCategory(func(s *options.DesiredState) { keepOnly(s, "cli_tools") }),
}

var provisionLanguagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "Provision only the language runtimes",
	RunE:  runCategory(func(s *options.DesiredState) { keepOnly(s, "languages") }),
}

// verifyCmd re-probes the environment without installing anything.
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Report observed vs. expected environment state",
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := newOrchestrator()
		if err != nil {
			return err
		}
		o.Reporter.Report(o.ExpectedEntryPoints())
		return nil
	},
}

// runCategory builds a RunE that narrows the desired state before running.
func runCategory(narrow func(*options.DesiredState)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		o, err := newOrchestrator()
		if err != nil {
			return err
		}
		narrow(o.State)
		_, err = o.Run()
		return err
	}
}

// keepOnly disables every category except the named one.
func keepOnly(s *options.DesiredState, category string) {
	s.Git.Install = category == "git"
	s.Terminal.Install = category == "terminal"
	s.Editors.Install = category == "editors"
	s.CLITools.Install = category == "cli_tools"
	s.Languages.Install = category == "languages"
}

func init() {
	provisionCmd.PersistentFlags().StringVar(&optionsFile, "options-file",
		filepath.Join(options.DefaultRoot(), "options.json"), "Path to the desired-state options file")
	verifyCmd.Flags().StringVar(&optionsFile, "options-file",
		filepath.Join(options.DefaultRoot(), "options.json"), "Path to the desired-state options file")

	provisionCmd.AddCommand(provisionGitCmd)
	provisionCmd.AddCommand(provisionTerminalCmd)
	provisionCmd.AddCommand(provisionEditorsCmd)
	provisionCmd.AddCommand(provisionToolsCmd)
	provisionCmd.AddCommand(provisionLanguagesCmd)

	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(verifyCmd)
}
