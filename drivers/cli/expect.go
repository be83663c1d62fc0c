package cli

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	expect "github.com/google/goexpect"
	"github.com/nanoncore/nano-switchctrl/types"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
)

// DefaultPromptPattern matches common CLI prompts like "hostname#" or
// "user@host>" at the very end of the output
var DefaultPromptPattern = regexp.MustCompile(`[\w\-.@\[\]()/]+[#>]\s*$`)

// ExpectPrompt is the sentinel pattern meaning "the switch's operational prompt".
// ReadUntil substitutes the shell's prompt pattern when it is passed.
var ExpectPrompt = regexp.MustCompile(`\x00switch-prompt\x00`)

// anyData matches whatever the device has sent so far
var anyData = regexp.MustCompile(`(?s).+`)

// exitDrain bounds the final read after the remote shell has exited
const exitDrain = 20 * time.Millisecond

// Spawner starts the remote shell and returns the goexpect handle and its exit channel
type Spawner func(timeout time.Duration, opts ...expect.Option) (*expect.GExpect, <-chan error, error)

// ExecSpawner spawns a local client executable (telnet, ssh) on a pty
func ExecSpawner(argv []string) Spawner {
	return func(timeout time.Duration, opts ...expect.Option) (*expect.GExpect, <-chan error, error) {
		return expect.SpawnWithArgs(argv, timeout, opts...)
	}
}

// SSHSpawner opens an interactive shell over an established SSH client
func SSHSpawner(client *ssh.Client) Spawner {
	return func(timeout time.Duration, opts ...expect.Option) (*expect.GExpect, <-chan error, error) {
		return expect.SpawnSSH(client, timeout, opts...)
	}
}

// PipeSpawner attaches to any stdin/stdout pair, such as a simulated switch
func PipeSpawner(in io.WriteCloser, out io.Reader, wait func() error, closeFn func() error, check func() bool) Spawner {
	return func(timeout time.Duration, opts ...expect.Option) (*expect.GExpect, <-chan error, error) {
		return expect.SpawnGeneric(&expect.GenOptions{
			In:    in,
			Out:   out,
			Wait:  wait,
			Close: closeFn,
			Check: check,
		}, timeout, opts...)
	}
}

// Match describes the terminating condition of a ReadUntil call
type Match struct {
	// Primary must be found. ExpectPrompt selects the switch prompt.
	Primary *regexp.Regexp

	// Secondary, when set, must also be found after Primary
	Secondary *regexp.Regexp

	// ReadAll keeps draining after the match until one poll interval passes quietly
	ReadAll bool

	// Timeout is the wall-clock bound of the whole call
	Timeout time.Duration

	// PollInterval bounds each wait for new data and each liveness check.
	// Zero uses the shell default.
	PollInterval time.Duration
}

// ShellConfig holds configuration for spawning a Shell
type ShellConfig struct {
	// Prompt is the operational prompt of the switch
	Prompt *regexp.Regexp

	// Timeout bounds the spawn itself
	Timeout time.Duration

	// PollInterval is the default liveness/drain interval
	PollInterval time.Duration

	// Debug routes raw session I/O to Logger
	Debug  bool
	Logger *zap.Logger
}

// Shell is the transport to one spawned remote shell. It serves one
// read or write at a time.
type Shell struct {
	mu      sync.Mutex
	exp     *expect.GExpect
	errCh   <-chan error
	exited  bool
	exitErr error

	prompt  *regexp.Regexp
	poll    time.Duration
	pending string
	command *Buffer
	reply   *Buffer
	logger  *zap.Logger
}

// errWriteStalled marks a shell abandoned after a write did not complete
var errWriteStalled = errors.New("write did not complete, shell abandoned")

// NewShell spawns the remote shell
func NewShell(spawn Spawner, cfg ShellConfig) (*Shell, error) {
	if spawn == nil {
		return nil, types.NewError(types.KindTransport, "spawn", "no spawner configured", nil)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.Prompt == nil {
		cfg.Prompt = DefaultPromptPattern
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	opts := []expect.Option{
		expect.Verbose(cfg.Debug),
		expect.CheckDuration(cfg.PollInterval),
	}
	if cfg.Debug {
		opts = append(opts, expect.VerboseWriter(zap.NewStdLog(cfg.Logger.Named("wire")).Writer()))
	}

	exp, errCh, err := spawn(cfg.Timeout, opts...)
	if err != nil {
		return nil, types.NewError(types.KindTransport, "spawn", "failed to spawn remote shell", err)
	}

	return &Shell{
		exp:    exp,
		errCh:  errCh,
		prompt: cfg.Prompt,
		poll:    cfg.PollInterval,
		command: NewBuffer(CommandBufferSize),
		reply:   NewBuffer(ReplyBufferSize),
		logger:  cfg.Logger,
	}, nil
}

// IsAlive reports, without blocking, whether the remote process is still running
func (s *Shell) IsAlive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aliveLocked()
}

func (s *Shell) aliveLocked() bool {
	if s.exp == nil || s.exited {
		return false
	}
	select {
	case err := <-s.errCh:
		s.exited = true
		s.exitErr = err
		return false
	default:
		return true
	}
}

// Prompt returns the operational prompt pattern
func (s *Shell) Prompt() *regexp.Regexp {
	return s.prompt
}

// LastReply returns the text accumulated by the last ReadUntil
func (s *Shell) LastReply() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reply.String()
}

// Write sends text to the remote shell. With expectEcho the line-editing echo
// of text is consumed before returning.
func (s *Shell) Write(text string, timeout time.Duration, expectEcho bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.aliveLocked() {
		return s.deadError("write")
	}

	if err := s.command.Set(text); err != nil {
		return types.NewError(types.KindPrecondition, "write", "command does not fit buffer", err)
	}
	payload := s.command.String()

	exp := s.exp
	errc := make(chan error, 1)
	go func() { errc <- exp.Send(payload) }()

	select {
	case err := <-errc:
		if err != nil {
			return types.NewError(types.KindTransport, "write", "failed to send command", err)
		}
	case <-time.After(timeout):
		// the send may still complete later; nothing else may use exp
		s.exited = true
		s.exitErr = errWriteStalled
		s.logger.Warn("write timed out, abandoning remote shell", zap.Duration("timeout", timeout))
		return types.Errorf(types.KindTimeout, "write", "write not completed within %s", timeout)
	}

	echo := strings.TrimSpace(text)
	if !expectEcho || echo == "" {
		return nil
	}

	re := regexp.MustCompile(regexp.QuoteMeta(echo))
	if _, err := s.readLocked(Match{Primary: re, Timeout: timeout}); err != nil {
		if types.KindOf(err) == types.KindTimeout {
			return types.Errorf(types.KindTransport, "write", "echo of %q not received", echo)
		}
		return err
	}
	return nil
}

// ReadUntil accumulates shell output until the match condition holds
func (s *Shell) ReadUntil(m Match) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked(m)
}

func (s *Shell) resolve(re *regexp.Regexp) *regexp.Regexp {
	if re == ExpectPrompt {
		return s.prompt
	}
	return re
}

// matchEnd returns the end offset of the satisfied condition in buf, or -1
func (s *Shell) matchEnd(buf []byte, m Match) int {
	loc := s.resolve(m.Primary).FindIndex(buf)
	if loc == nil {
		return -1
	}
	if m.Secondary == nil {
		return loc[1]
	}
	loc2 := s.resolve(m.Secondary).FindIndex(buf[loc[1]:])
	if loc2 == nil {
		return -1
	}
	return loc[1] + loc2[1]
}

func (s *Shell) readLocked(m Match) (string, error) {
	if m.Primary == nil {
		return "", types.NewError(types.KindPrecondition, "read", "no pattern given", nil)
	}
	poll := m.PollInterval
	if poll <= 0 {
		poll = s.poll
	}

	deadline := time.Now().Add(m.Timeout)
	s.reply.Reset()
	_ = s.reply.Append(s.pending)
	s.pending = ""

	end := s.matchEnd(s.reply.Bytes(), m)
	for end < 0 {
		if !s.aliveLocked() {
			if s.exp != nil && !errors.Is(s.exitErr, errWriteStalled) {
				// output written just before the exit may still be buffered
				chunk, _, _ := s.exp.Expect(anyData, exitDrain)
				if err := s.collect(chunk); err != nil {
					return "", err
				}
				if end = s.matchEnd(s.reply.Bytes(), m); end >= 0 {
					break
				}
			}
			s.pending = s.reply.String()
			return s.pending, s.deadError("read")
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			s.pending = s.reply.String()
			return s.pending, types.Errorf(types.KindTimeout, "read",
				"pattern %q not seen within %s", s.resolve(m.Primary).String(), m.Timeout)
		}
		step := poll
		if remaining < step {
			step = remaining
		}

		// A quiet interval surfaces as an error from goexpect; liveness is
		// re-checked at the top of the loop.
		started := time.Now()
		chunk, _, err := s.exp.Expect(anyData, step)
		if err != nil && chunk == "" {
			if idle := step - time.Since(started); idle > 0 {
				time.Sleep(idle)
			}
		}
		if err := s.collect(chunk); err != nil {
			return "", err
		}
		end = s.matchEnd(s.reply.Bytes(), m)
	}

	if m.ReadAll {
		// drain until a quiet poll interval, the exit of the remote or the deadline
		for s.aliveLocked() {
			step := poll
			if remaining := time.Until(deadline); remaining < step {
				step = remaining
			}
			if step <= 0 {
				s.logger.Debug("reply still streaming at deadline", zap.Int("bytes", s.reply.Len()))
				break
			}
			chunk, _, err := s.exp.Expect(anyData, step)
			if err := s.collect(chunk); err != nil {
				return "", err
			}
			if err != nil || chunk == "" {
				break
			}
		}
		end = s.reply.Len()
	}

	s.pending = string(s.reply.Bytes()[end:])
	s.reply.Truncate(end)
	return s.reply.String(), nil
}

// collect appends a chunk to the reply buffer, failing once it overflows
func (s *Shell) collect(chunk string) error {
	if err := s.reply.Append(chunk); err != nil {
		s.reply.Reset()
		return types.NewError(types.KindProtocol, "read", fmt.Sprintf("reply exceeds %d bytes", ReplyBufferSize), err)
	}
	return nil
}

func (s *Shell) deadError(op string) error {
	if s.exitErr != nil {
		return types.NewError(types.KindTransport, op, "remote shell exited", s.exitErr)
	}
	return types.NewError(types.KindTransport, op, "remote shell is not running", nil)
}

// WaitExit waits up to timeout for the remote shell to end on its own
func (s *Shell) WaitExit(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if !s.IsAlive() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(exitDrain)
	}
}

// Close terminates the remote shell and reaps the process
func (s *Shell) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.exp == nil {
		return nil
	}
	err := s.exp.Close()
	if !s.exited {
		select {
		case s.exitErr = <-s.errCh:
		case <-time.After(2 * s.poll):
			s.logger.Warn("remote shell did not exit after close")
		}
		s.exited = true
	}
	s.exp = nil
	s.pending = ""
	s.command.Release()
	s.reply.Release()
	if err != nil {
		return fmt.Errorf("failed to close remote shell: %w", err)
	}
	return nil
}

// expectCases runs one goexpect switch-case step and returns the matched case index
func (s *Shell) expectCases(cs []expect.Caser, timeout time.Duration) (string, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.aliveLocked() {
		return "", -1, s.deadError("login")
	}
	s.pending = ""
	out, _, idx, err := s.exp.ExpectSwitchCase(cs, timeout)
	if err != nil && idx < 0 {
		if !s.aliveLocked() {
			return out, idx, s.deadError("login")
		}
		return out, idx, types.NewError(types.KindTimeout, "login", "no login prompt matched", err)
	}
	return out, idx, err
}
