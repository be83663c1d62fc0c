package cli

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	expect "github.com/google/goexpect"
	"github.com/nanoncore/nano-switchctrl/types"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"google.golang.org/grpc/codes"
)

// Login prompts shared by most switch shells
var (
	DefaultUserPrompt     = regexp.MustCompile(`(?i)(login|user(name)?)\s*:\s*$`)
	DefaultPasswordPrompt = regexp.MustCompile(`(?i)password\s*:\s*$`)
	DefaultLoginFailure   = regexp.MustCompile(`(?i)(login incorrect|authentication failed|access denied|bad password)`)
)

// LoginDialog describes the authentication exchange of a switch shell
type LoginDialog struct {
	UserPrompt     *regexp.Regexp
	PasswordPrompt *regexp.Regexp

	// Ready ends the dialogue: an operational prompt or a protocol banner.
	// Nil means the shell prompt.
	Ready *regexp.Regexp

	// Failure aborts the dialogue
	Failure *regexp.Regexp

	Username string
	Password string
}

// DefaultLoginDialog returns the username/password dialogue for config
func DefaultLoginDialog(config *types.SwitchConfig) LoginDialog {
	return LoginDialog{
		UserPrompt:     DefaultUserPrompt,
		PasswordPrompt: DefaultPasswordPrompt,
		Failure:        DefaultLoginFailure,
		Username:       config.Username,
		Password:       config.Password,
	}
}

// Option customizes a Driver
type Option func(*Driver)

// WithSpawner replaces the transport spawner (e.g. to attach a simulated switch)
func WithSpawner(s Spawner) Option {
	return func(d *Driver) { d.spawner = s }
}

// WithPrompt sets the operational prompt pattern
func WithPrompt(re *regexp.Regexp) Option {
	return func(d *Driver) { d.prompt = re }
}

// Driver is the session lifecycle over one remote shell: spawn, login,
// logout and keep-alive.
type Driver struct {
	config    *types.SwitchConfig
	sshClient *ssh.Client
	shell     *Shell
	spawner   Spawner
	prompt    *regexp.Regexp
	active    bool
	logger    *zap.Logger
}

// NewDriver creates a new CLI driver
func NewDriver(config *types.SwitchConfig, opts ...Option) (*Driver, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	config.ApplyDefaults()

	d := &Driver{
		config: config,
		prompt: DefaultPromptPattern,
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.spawner == nil && config.Address == "" {
		return nil, fmt.Errorf("address is required")
	}

	d.logger = config.Logger.With(
		zap.String("switch", config.Name),
		zap.String("transport", string(config.Transport)),
	)
	return d, nil
}

// Config returns the switch configuration
func (d *Driver) Config() *types.SwitchConfig {
	return d.config
}

// Logger returns the session logger
func (d *Driver) Logger() *zap.Logger {
	return d.logger
}

// Prompt returns the operational prompt pattern
func (d *Driver) Prompt() *regexp.Regexp {
	return d.prompt
}

// SpawnArgs returns the client command line for spawned transports
func SpawnArgs(config *types.SwitchConfig) ([]string, error) {
	port := strconv.Itoa(config.Port)
	switch config.Transport {
	case types.TransportTelnet, types.TransportTL1Telnet:
		return []string{config.Executable, config.Address, port}, nil
	case types.TransportSSH:
		return []string{
			config.Executable,
			"-o", "StrictHostKeyChecking=no",
			"-p", port,
			"-l", config.Username,
			config.Address,
		}, nil
	default:
		return nil, fmt.Errorf("transport %q is not spawned", config.Transport)
	}
}

// sshClientConfig accepts both modern and legacy algorithms; older switch
// firmware only offers CBC ciphers and group1 key exchange.
func (d *Driver) sshClientConfig() *ssh.ClientConfig {
	// Some switches require keyboard-interactive instead of password
	keyboardInteractive := ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
		answers := make([]string, len(questions))
		for i := range questions {
			answers[i] = d.config.Password
		}
		return answers, nil
	})

	return &ssh.ClientConfig{
		User: d.config.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(d.config.Password),
			keyboardInteractive,
		},
		Timeout:         d.config.Timeouts.Login,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // switches use self-generated host keys
		Config: ssh.Config{
			Ciphers: []string{
				"aes128-gcm@openssh.com",
				"aes256-gcm@openssh.com",
				"chacha20-poly1305@openssh.com",
				"aes128-ctr",
				"aes192-ctr",
				"aes256-ctr",
				"aes128-cbc",
			},
			KeyExchanges: []string{
				"curve25519-sha256",
				"ecdh-sha2-nistp256",
				"ecdh-sha2-nistp384",
				"ecdh-sha2-nistp521",
				"diffie-hellman-group14-sha256",
				"diffie-hellman-group14-sha1",
				"diffie-hellman-group1-sha1",
			},
		},
	}
}

// Open spawns the transport. Nothing is left half-open on failure.
func (d *Driver) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.shell != nil {
		_ = d.closeTransport()
	}

	spawner := d.spawner
	if spawner == nil {
		switch d.config.Transport {
		case types.TransportSSHNative:
			target := fmt.Sprintf("%s:%d", d.config.Address, d.config.Port)
			client, err := ssh.Dial("tcp", target, d.sshClientConfig())
			if err != nil {
				return types.NewError(types.KindTransport, "connect", "failed to dial SSH", err)
			}
			d.sshClient = client
			spawner = SSHSpawner(client)
		default:
			argv, err := SpawnArgs(d.config)
			if err != nil {
				return types.NewError(types.KindPrecondition, "connect", err.Error(), nil)
			}
			spawner = ExecSpawner(argv)
		}
	}

	shell, err := NewShell(spawner, ShellConfig{
		Prompt:       d.prompt,
		Timeout:      d.config.Timeouts.Login,
		PollInterval: d.config.Timeouts.Poll,
		Debug:        d.config.Debug,
		Logger:       d.logger,
	})
	if err != nil {
		_ = d.closeTransport()
		return err
	}
	d.shell = shell
	d.logger.Debug("transport spawned")
	return nil
}

// Engage runs the login dialogue and marks the session active once the
// ready pattern is seen
func (d *Driver) Engage(ctx context.Context, dialog LoginDialog) error {
	if d.shell == nil {
		return types.ErrNotConnected
	}

	ready := dialog.Ready
	if ready == nil {
		ready = d.prompt
	}

	// Case order decides precedence when several patterns are present
	const (
		caseFailure = iota
		caseUser
		casePassword
		caseReady
	)
	var (
		cases []expect.Caser
		kinds []int
	)
	add := func(re *regexp.Regexp, kind int, c *expect.Case) {
		if re == nil {
			return
		}
		c.R = re
		cases = append(cases, c)
		kinds = append(kinds, kind)
	}
	add(dialog.Failure, caseFailure, &expect.Case{T: expect.Fail(expect.NewStatus(codes.PermissionDenied, "login rejected"))})
	add(dialog.UserPrompt, caseUser, &expect.Case{T: expect.OK()})
	add(dialog.PasswordPrompt, casePassword, &expect.Case{T: expect.OK()})
	add(ready, caseReady, &expect.Case{T: expect.OK()})

	deadline := time.Now().Add(d.config.Timeouts.Login)
	sentUser, sentPassword := false, false
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return types.Errorf(types.KindTimeout, "login", "login not completed within %s", d.config.Timeouts.Login)
		}

		out, idx, err := d.shell.expectCases(cases, remaining)
		if idx < 0 {
			return err
		}

		switch kinds[idx] {
		case caseFailure:
			return types.NewError(types.KindTransport, "login", "switch rejected credentials", err)
		case caseUser:
			if sentUser {
				return types.NewError(types.KindTransport, "login", "switch rejected credentials", nil)
			}
			sentUser = true
			if err := d.shell.Write(dialog.Username+"\n", d.config.Timeouts.Write, false); err != nil {
				return err
			}
		case casePassword:
			if sentPassword {
				return types.NewError(types.KindTransport, "login", "switch rejected credentials", nil)
			}
			sentPassword = true
			if err := d.shell.Write(dialog.Password+"\n", d.config.Timeouts.Write, false); err != nil {
				return err
			}
		case caseReady:
			d.active = true
			d.logger.Info("session engaged", zap.Int("banner_bytes", len(out)))
			return nil
		}
	}
}

// Connect implements types.Driver: spawn and log in with the default dialogue
func (d *Driver) Connect(ctx context.Context, config *types.SwitchConfig) error {
	if config != nil {
		d.config = config
		d.config.ApplyDefaults()
	}
	if err := d.Open(ctx); err != nil {
		return err
	}
	if err := d.Engage(ctx, DefaultLoginDialog(d.config)); err != nil {
		_ = d.closeTransport()
		return err
	}
	return nil
}

// Disengage sends the logout text and tears the transport down.
// It is a no-op on an inactive session.
func (d *Driver) Disengage(ctx context.Context, logout string) error {
	if !d.active && d.shell == nil {
		return nil
	}
	if d.active && logout != "" && d.shell.IsAlive() {
		if err := d.shell.Write(logout, d.config.Timeouts.Write, false); err != nil {
			d.logger.Debug("logout not delivered", zap.Error(err))
		} else if !d.shell.WaitExit(d.config.Timeouts.Write) {
			d.logger.Debug("remote shell still running after logout")
		}
	}
	d.active = false
	err := d.closeTransport()
	d.logger.Info("session disengaged")
	return err
}

// Disconnect implements types.Driver
func (d *Driver) Disconnect(ctx context.Context) error {
	return d.Disengage(ctx, "exit\n")
}

func (d *Driver) closeTransport() error {
	var err error
	if d.shell != nil {
		err = d.shell.Close()
		d.shell = nil
	}
	if d.sshClient != nil {
		_ = d.sshClient.Close()
		d.sshClient = nil
	}
	return err
}

// Active reports whether the login completed and the session was not closed since
func (d *Driver) Active() bool {
	return d.active
}

// IsConnected returns true if the session is active and its shell is alive
func (d *Driver) IsConnected() bool {
	return d.active && d.shell != nil && d.shell.IsAlive()
}

// IsSwitchPrompt reports whether buf ends with the operational prompt
func (d *Driver) IsSwitchPrompt(buf string) bool {
	return d.prompt.MatchString(buf)
}

// Write sends text with the configured write timeout
func (d *Driver) Write(text string, expectEcho bool) error {
	if d.shell == nil {
		return types.ErrNotConnected
	}
	return d.shell.Write(text, d.config.Timeouts.Write, expectEcho)
}

// ReadUntil reads with the configured read timeout and poll interval when m leaves them unset
func (d *Driver) ReadUntil(m Match) (string, error) {
	if d.shell == nil {
		return "", types.ErrNotConnected
	}
	if m.Timeout == 0 {
		m.Timeout = d.config.Timeouts.Read
	}
	if m.PollInterval == 0 {
		m.PollInterval = d.config.Timeouts.Poll
	}
	return d.shell.ReadUntil(m)
}

// Refresh checks an alive session with an empty line and reconnects a dead one
func (d *Driver) Refresh(ctx context.Context) error {
	if !d.IsConnected() {
		d.logger.Warn("session lost, reconnecting")
		_ = d.Disengage(ctx, "")
		return d.Connect(ctx, nil)
	}
	if err := d.Write("\n", false); err != nil {
		return err
	}
	_, err := d.ReadUntil(Match{Primary: ExpectPrompt})
	return err
}

// execCommand sends one command and returns its output without echo and prompt
func (d *Driver) execCommand(ctx context.Context, command string) (string, error) {
	if !d.IsConnected() {
		return "", types.ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := d.Write(command+"\n", true); err != nil {
		return "", err
	}
	output, err := d.ReadUntil(Match{Primary: ExpectPrompt})
	if err != nil {
		return output, fmt.Errorf("waiting for prompt after command %q: %w", command, err)
	}
	return CleanOutput(output, command, d.prompt), nil
}

// CleanOutput removes the command echo and prompt lines from output
func CleanOutput(output, command string, prompt *regexp.Regexp) string {
	lines := strings.Split(strings.ReplaceAll(output, "\r", ""), "\n")
	cleaned := make([]string, 0, len(lines))
	echoSeen := false

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !echoSeen && command != "" && strings.Contains(trimmed, command) {
			echoSeen = true
			continue
		}
		if trimmed != "" && prompt.MatchString(trimmed) {
			continue
		}
		cleaned = append(cleaned, line)
	}

	return strings.TrimSpace(strings.Join(cleaned, "\n"))
}

// ExecCommand implements types.CLIExecutor - executes a single CLI command
func (d *Driver) ExecCommand(ctx context.Context, command string) (string, error) {
	return d.execCommand(ctx, command)
}

// ExecCommands implements types.CLIExecutor - executes multiple CLI commands sequentially
func (d *Driver) ExecCommands(ctx context.Context, commands []string) ([]string, error) {
	results := make([]string, 0, len(commands))
	for _, cmd := range commands {
		output, err := d.execCommand(ctx, cmd)
		if err != nil {
			return results, fmt.Errorf("command %q failed: %w", cmd, err)
		}
		results = append(results, output)
	}
	return results, nil
}

var (
	_ types.Driver      = (*Driver)(nil)
	_ types.CLIExecutor = (*Driver)(nil)
)
