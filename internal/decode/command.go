package decode

import "github.com/zboralski/raspguard/internal/jvm"

// Command is a single command string (profile A), as passed to
// ProcessImpl.create.
type Command struct {
	buf     [CommandCap]byte
	n       int
	present bool
}

// DecodeCommand copies the command string into a bounded buffer. A null
// reference or a string the host cannot expose leaves the result absent.
func DecodeCommand(env jvm.Env, s jvm.String) Command {
	var c Command
	if s == 0 {
		return c
	}
	chars := env.GetStringUTFChars(s)
	if chars == nil {
		return c
	}
	c.n = copyBounded(c.buf[:], chars)
	c.present = true
	env.ReleaseStringUTFChars(s, chars)
	return c
}

// Present reports whether the host supplied command text.
func (c *Command) Present() bool {
	return c.present
}

// Text returns the decoded command.
func (c *Command) Text() string {
	return string(c.buf[:c.n])
}

// Truncated reports whether the command filled its buffer.
func (c *Command) Truncated() bool {
	return c.n == CommandCap-1
}
