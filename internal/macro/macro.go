// SPDX-License-Identifier: MPL-2.0

package macro

import (
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/pkgsmith/pkgsmith/internal/issue"
	"github.com/pkgsmith/pkgsmith/pkg/types"
)

const (
	tokenGit       = "${git}"
	tokenDate      = "${date}"
	tokenDateTime  = "${date-time}"
	tokenTimestamp = "${timestamp}"
	tokenExt       = "ext"
	tokenArch      = "arch"

	// maxEnvPasses bounds env substitution when a value itself contains tokens.
	maxEnvPasses = 8
)

var (
	envPattern     = regexp.MustCompile(`\$\{env\.(\w+)\}`)
	contextPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)
)

type (
	// Clock supplies the current time for date tokens.
	Clock interface {
		Now() time.Time
	}

	// GitHashFunc returns the abbreviated HEAD commit hash.
	GitHashFunc func() (string, error)

	// Expander substitutes ${...} tokens in build identifiers and artifact
	// file names. Unresolved tokens are left verbatim.
	Expander struct {
		clock     Clock
		lookupEnv func(string) (string, bool)
		gitHash   GitHashFunc
		logger    *log.Logger
	}

	// Option configures an Expander.
	Option func(*Expander)

	// Context carries the per-artifact values for ExpandContext.
	Context struct {
		Target types.Target
		Arch   types.Arch
		// Fields maps metadata keys to values, see MetadataFields.
		Fields map[string]string
	}

	systemClock struct{}
)

func (systemClock) Now() time.Time { return time.Now() }

// WithClock overrides the time source.
func WithClock(c Clock) Option {
	return func(e *Expander) { e.clock = c }
}

// WithLookupEnv overrides environment lookup.
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(e *Expander) { e.lookupEnv = fn }
}

// WithGitHash overrides how ${git} is resolved.
func WithGitHash(fn GitHashFunc) Option {
	return func(e *Expander) { e.gitHash = fn }
}

// WithLogger sets the logger used for skipped tokens.
func WithLogger(l *log.Logger) Option {
	return func(e *Expander) { e.logger = l }
}

// New creates an Expander reading the system clock, the process environment
// and the git repository containing the working directory.
func New(opts ...Option) *Expander {
	e := &Expander{
		clock:     systemClock{},
		lookupEnv: os.LookupEnv,
		gitHash:   RepoGitHash("."),
		logger:    log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExpandSimple resolves ${git}, ${date}, ${date-time}, ${timestamp} and
// ${env.NAME}. It is used for the build identifier.
func (e *Expander) ExpandSimple(s string) (string, error) {
	if strings.Contains(s, tokenGit) {
		hash, err := e.gitHash()
		if err != nil {
			return "", err
		}
		s = strings.ReplaceAll(s, tokenGit, hash)
	}

	if strings.Contains(s, tokenDate) || strings.Contains(s, tokenDateTime) || strings.Contains(s, tokenTimestamp) {
		now := e.clock.Now()
		s = strings.ReplaceAll(s, tokenDate, now.Format("20060102"))
		s = strings.ReplaceAll(s, tokenDateTime, now.Format("20060102150405"))
		s = strings.ReplaceAll(s, tokenTimestamp, strconv.FormatInt(now.Unix(), 10))
	}

	for pass := 0; pass < maxEnvPasses; pass++ {
		matches := envPattern.FindAllStringSubmatch(s, -1)
		if len(matches) == 0 {
			break
		}
		for _, m := range matches {
			value, ok := e.lookupEnv(m[1])
			if !ok {
				return "", issue.Errorf(issue.KindEnvNotSet, m[0], "environment variable %s is not set", m[1])
			}
			s = strings.ReplaceAll(s, m[0], value)
		}
	}

	return s, nil
}

// ExpandContext runs ExpandSimple and then resolves ${ext}, ${arch} and
// ${<metadata field>} from ctx. Unknown keys and unset optional fields are
// logged at debug level and left in place.
func (e *Expander) ExpandContext(s string, ctx Context) (string, error) {
	s, err := e.ExpandSimple(s)
	if err != nil {
		return "", err
	}

	return contextPattern.ReplaceAllStringFunc(s, func(token string) string {
		key := token[2 : len(token)-1]
		switch key {
		case tokenExt:
			if ext := ctx.Target.Extension(); ext != "" {
				return ext
			}
		case tokenArch:
			if ctx.Arch != "" {
				return ctx.Arch.String()
			}
		default:
			if v, ok := ctx.Fields[key]; ok {
				return v
			}
		}
		e.logger.Debug("leaving macro unresolved", "token", token)
		return token
	}), nil
}
