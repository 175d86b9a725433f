// Package probe reads the current input-method state from a live UI
// accessibility tree.
//
// The tree is reached through a narrow traversal interface (Element) so the
// extraction logic never depends on the platform's object model. A Locator
// names the container to search (a direct child of the root, such as the
// Windows taskbar) and a pattern with one capturing group that turns an
// indicator's label into a token.
package probe

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"imselect/internal/ime"
)

// Role classifies elements for FindDescendants.
type Role int

const (
	// RoleButton matches interactive indicator buttons.
	RoleButton Role = iota + 1
)

// Element is one node of an accessibility tree.
type Element interface {
	// FindChild returns the first direct child whose name equals name,
	// or nil when there is none.
	FindChild(name string) (Element, error)

	// FindDescendants returns every descendant with the given role in the
	// order the tree exposes them.
	FindDescendants(role Role) ([]Element, error)

	// Label returns the element's display name.
	Label() (string, error)
}

// Tree is an acquired view of the accessibility tree. Elements obtained
// from it are valid until Close.
type Tree interface {
	Root() (Element, error)
	Close() error
}

// Source acquires trees.
type Source interface {
	Open() (Tree, error)
}

// Locator says where the indicator lives and how to read it.
type Locator struct {
	Container string
	pattern   *regexp.Regexp
}

// PatternError reports an extraction pattern rejected at construction.
type PatternError struct {
	Pattern string
	Reason  string
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("probe: invalid regex pattern %q: %s", e.Pattern, e.Reason)
}

func (e *PatternError) Unwrap() error { return ime.ErrConfiguration }

// NewLocator compiles pattern, which must contain exactly one capturing group.
func NewLocator(container, pattern string) (Locator, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Locator{}, &PatternError{Pattern: pattern, Reason: err.Error()}
	}
	if n := re.NumSubexp(); n != 1 {
		return Locator{}, &PatternError{
			Pattern: pattern,
			Reason:  fmt.Sprintf("want exactly one capturing group, found %d", n),
		}
	}
	return Locator{Container: container, pattern: re}, nil
}

// Extract applies the pattern to label. A match whose capturing group did
// not participate, as with an optional group, is not a match.
func (l Locator) Extract(label string) (string, bool) {
	idx := l.pattern.FindStringSubmatchIndex(label)
	if idx == nil || idx[2] < 0 {
		return "", false
	}
	return label[idx[2]:idx[3]], true
}

// ContainerNotFoundError reports that the root has no child with the
// configured name.
type ContainerNotFoundError struct {
	Name string
	Err  error
}

func (e *ContainerNotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("probe: failed to find container '%s': %v", e.Name, e.Err)
	}
	return fmt.Sprintf("probe: failed to find container '%s'", e.Name)
}

func (e *ContainerNotFoundError) Unwrap() []error {
	if e.Err != nil {
		return []error{ime.ErrTransientProbe, e.Err}
	}
	return []error{ime.ErrTransientProbe}
}

// Probe reads the state token through a Source.
type Probe struct {
	source  Source
	locator Locator
	logger  *slog.Logger
}

// New creates a Probe. A nil logger uses slog.Default().
func New(source Source, locator Locator, logger *slog.Logger) *Probe {
	if logger == nil {
		logger = slog.Default()
	}
	return &Probe{
		source:  source,
		locator: locator,
		logger:  logger,
	}
}

// Read returns the token of the first indicator whose label matches the
// pattern. found is false, with a nil error, when the container exists but
// no indicator matches. An error means the tree or the container could not
// be reached. The tree is released before Read returns.
func (p *Probe) Read() (token string, found bool, err error) {
	if p.locator.pattern == nil {
		return "", false, ime.Configf("probe: locator has no pattern")
	}

	tree, err := p.source.Open()
	if err != nil {
		if errors.Is(err, ime.ErrUnsupported) {
			return "", false, err
		}
		return "", false, fmt.Errorf("%w: %w", ime.ErrTransientProbe, err)
	}
	defer func() {
		if cerr := tree.Close(); cerr != nil {
			p.logger.Debug("release tree", "error", cerr)
		}
	}()

	root, err := tree.Root()
	if err != nil {
		return "", false, fmt.Errorf("%w: failed to get root element: %v", ime.ErrTransientProbe, err)
	}

	container, err := root.FindChild(p.locator.Container)
	if err != nil {
		return "", false, &ContainerNotFoundError{Name: p.locator.Container, Err: err}
	}
	if container == nil {
		return "", false, &ContainerNotFoundError{Name: p.locator.Container}
	}

	candidates, err := container.FindDescendants(RoleButton)
	if err != nil {
		return "", false, fmt.Errorf("%w: failed to list indicators: %v", ime.ErrTransientProbe, err)
	}

	for i, el := range candidates {
		label, err := el.Label()
		if err != nil {
			p.logger.Debug("skip unreadable candidate", "index", i, "error", err)
			continue
		}
		if tok, ok := p.locator.Extract(label); ok {
			p.logger.Debug("indicator matched", "index", i, "label", label, "state", tok)
			return tok, true, nil
		}
	}

	p.logger.Debug("no indicator matched", "container", p.locator.Container, "candidates", len(candidates))
	return "", false, nil
}
