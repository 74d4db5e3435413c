// Package profile wires the installed tools into the user's shell session:
// the startup profile, the generated fragment files it sources, and the git
// identity file.
package profile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"devstrap/internal/logger"
	"devstrap/internal/options"
)

// Fragment file names under <root>/scripts.
const (
	FragmentPaths     = "paths"
	FragmentAliases   = "aliases"
	FragmentFunctions = "functions"
)

// Fragments is the directory of generated shell fragments the profile
// sources. Installers append initialization lines here through AppendGuarded.
type Fragments struct {
	Dir string
}

// Path returns the on-disk path of a named fragment.
func (f *Fragments) Path(name string) string {
	return filepath.Join(f.Dir, name+".sh")
}

// AppendGuarded appends block to the named fragment unless the fragment
// already contains marker. The marker check is the only de-duplication:
// re-running a provisioning step appends nothing the second time.
func (f *Fragments) AppendGuarded(name, marker, block string) error {
	if err := os.MkdirAll(f.Dir, 0755); err != nil {
		return fmt.Errorf("create fragments dir: %w", err)
	}
	path := f.Path(name)

	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read fragment %s: %w", path, err)
	}
	if strings.Contains(string(existing), marker) {
		logger.Debug("[DEBUG] Fragment %s already contains %q, skipping append\n", path, marker)
		return nil
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open fragment %s: %w", path, err)
	}
	defer file.Close()

	if !strings.HasSuffix(block, "\n") {
		block += "\n"
	}
	if _, err := file.WriteString(block); err != nil {
		return fmt.Errorf("append to fragment %s: %w", path, err)
	}
	logger.Info("[INFO] Added %s line to %s\n", marker, path)
	return nil
}

// profileTemplate is the full shell startup file. It is rewritten wholesale
// on every run; user customization belongs in the .local override it sources.
const profileTemplate = `# Generated by devstrap. Do not edit; put overrides in ~/.devboxrc.local
export DEVBOX_ROOT="{{.Root}}"
export PATH="$DEVBOX_ROOT/tools/bin:$PATH"

for fragment in paths aliases functions; do
    [ -f "$DEVBOX_ROOT/scripts/$fragment.sh" ] && . "$DEVBOX_ROOT/scripts/$fragment.sh"
done

[ -f "$HOME/.devboxrc.local" ] && . "$HOME/.devboxrc.local"
`

// identityTemplate is the rendered git configuration.
const identityTemplate = `# Generated by devstrap
[user]
	name = {{.Name}}
	email = {{.Email}}
[init]
	defaultBranch = main
[core]
	autocrlf = input
`

// Publisher rewrites the profile and identity files. Re-running always fully
// overwrites; the previous file survives only as the timestamped backup.
type Publisher struct {
	Home      string
	Root      string
	Fragments *Fragments
	Now       func() time.Time // test seam for backup names
	In        io.Reader        // identity prompt source, defaults to stdin

	reader *bufio.Reader // lazily wraps In; one buffer across prompts
}

// ProfileName is the shell startup file the publisher owns.
const ProfileName = ".bashrc"

// PublishProfile backs up and rewrites the shell profile, and seeds the
// fragment files the profile sources.
func (p *Publisher) PublishProfile() error {
	profilePath := filepath.Join(p.Home, ProfileName)
	if err := p.backup(profilePath); err != nil {
		return err
	}

	var buf strings.Builder
	tmpl := template.Must(template.New("profile").Parse(profileTemplate))
	if err := tmpl.Execute(&buf, struct{ Root string }{Root: p.Root}); err != nil {
		return fmt.Errorf("render profile: %w", err)
	}
	if err := os.WriteFile(profilePath, []byte(buf.String()), 0644); err != nil {
		return fmt.Errorf("write profile %s: %w", profilePath, err)
	}
	logger.Success("[OK] Wrote shell profile %s\n", profilePath)

	// Seed fragments so the profile's source lines always find a file.
	for _, frag := range []string{FragmentPaths, FragmentAliases, FragmentFunctions} {
		if err := p.Fragments.AppendGuarded(frag, "# devstrap "+frag, "# devstrap "+frag+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// PublishIdentity backs up and rewrites the git identity file from the
// desired state, prompting for any missing field.
func (p *Publisher) PublishIdentity(git options.Git) error {
	if !git.Configure {
		logger.Debug("[DEBUG] git.configure is off, leaving identity alone\n")
		return nil
	}

	name := git.User.Name
	email := git.User.Email
	if name == "" {
		name = p.prompt("Git user name: ")
	}
	if email == "" {
		email = p.prompt("Git user email: ")
	}

	identityPath := filepath.Join(p.Home, ".gitconfig")
	if err := p.backup(identityPath); err != nil {
		return err
	}

	var buf strings.Builder
	tmpl := template.Must(template.New("identity").Parse(identityTemplate))
	if err := tmpl.Execute(&buf, struct{ Name, Email string }{Name: name, Email: email}); err != nil {
		return fmt.Errorf("render identity: %w", err)
	}
	if err := os.WriteFile(identityPath, []byte(buf.String()), 0644); err != nil {
		return fmt.Errorf("write identity %s: %w", identityPath, err)
	}
	logger.Success("[OK] Wrote git identity for %s <%s>\n", name, email)
	return nil
}

// backup copies an existing file aside under a timestamped name before it is
// overwritten. Missing files need no backup.
func (p *Publisher) backup(path string) error {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s for backup: %w", path, err)
	}

	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	backupPath := fmt.Sprintf("%s.%s.bak", path, now().Format("20060102-150405"))
	if err := os.WriteFile(backupPath, raw, 0644); err != nil {
		return fmt.Errorf("write backup %s: %w", backupPath, err)
	}
	logger.Info("[INFO] Backed up %s to %s\n", path, backupPath)
	return nil
}

// prompt reads one line interactively. Used only when the desired state
// leaves an identity field empty.
func (p *Publisher) prompt(question string) string {
	if p.reader == nil {
		in := p.In
		if in == nil {
			in = os.Stdin
		}
		p.reader = bufio.NewReader(in)
	}
	fmt.Print(question)
	line, err := p.reader.ReadString('\n')
	if err != nil && line == "" {
		return ""
	}
	return strings.TrimSpace(line)
}
