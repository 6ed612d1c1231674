// pre_processor.go expands @oxy:include annotations with WGSL sources registered by the
// packages that own the matching Go types, and collects @oxy:layout declarations.
package shader

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// includes is the process-wide include registry. Packages register their struct sources
// from init.
var includes = struct {
	mu      sync.RWMutex
	sources map[string]string
}{sources: make(map[string]string)}

// RegisterInclude makes source available to //@oxy:include name. Registering a name twice
// replaces the earlier source.
//
// Parameters:
//   - name: the include name
//   - source: the WGSL text injected at the annotation site
func RegisterInclude(name, source string) {
	includes.mu.Lock()
	defer includes.mu.Unlock()
	includes.sources[name] = source
}

// Includes returns the registered include names in sorted order.
func Includes() []string {
	includes.mu.RLock()
	defer includes.mu.RUnlock()
	return slices.Sorted(maps.Keys(includes.sources))
}

func lookupInclude(name string) (string, bool) {
	includes.mu.RLock()
	defer includes.mu.RUnlock()
	src, ok := includes.sources[name]
	return src, ok
}

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	// extra holds includes local to this pre-processor; they shadow the registry.
	extra map[string]string

	layouts []Annotation
}

// PreProcessor expands @oxy: annotations in WGSL source.
type PreProcessor interface {
	// Process expands every include, recursively, and records layout annotations. An include
	// is expanded at most once per Process call; later annotations for the same name are
	// dropped so shared structs are not declared twice.
	//
	// Parameters:
	//   - source: the annotated WGSL source
	//
	// Returns:
	//   - string: the expanded WGSL source
	//   - error: an error if an annotation is malformed or names an unknown include
	Process(source string) (string, error)

	// Layouts returns the layout annotations collected by the last Process call, in source
	// order.
	//
	// Returns:
	//   - []Annotation: the layout annotations
	Layouts() []Annotation
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a pre-processor backed by the include registry.
//
// Parameters:
//   - extra: includes visible only to this pre-processor, may be nil
//
// Returns:
//   - PreProcessor: the pre-processor
func NewPreProcessor(extra map[string]string) PreProcessor {
	return &preProcessor{extra: extra}
}

func (p *preProcessor) Process(source string) (string, error) {
	p.layouts = p.layouts[:0]
	seen := make(map[string]bool)
	var sb strings.Builder
	if err := p.expand(&sb, source, seen, nil); err != nil {
		return "", err
	}
	return strings.TrimSuffix(sb.String(), "\n"), nil
}

func (p *preProcessor) Layouts() []Annotation {
	return p.layouts
}

func (p *preProcessor) lookup(name string) (string, bool) {
	if src, ok := p.extra[name]; ok {
		return src, true
	}
	return lookupInclude(name)
}

// expand writes source to sb, replacing include annotations. stack holds the includes
// currently being expanded.
func (p *preProcessor) expand(sb *strings.Builder, source string, seen map[string]bool, stack []string) error {
	for i, line := range strings.Split(source, "\n") {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return inIncludeError(stack, err)
		}
		if a == nil {
			sb.WriteString(line)
			sb.WriteByte('\n')
			continue
		}

		switch a.Type {
		case AnnotationTypeInclude:
			if slices.Contains(stack, a.Name) {
				return fmt.Errorf("include cycle: %s -> %s", strings.Join(stack, " -> "), a.Name)
			}
			if seen[a.Name] {
				continue
			}
			src, ok := p.lookup(a.Name)
			if !ok {
				return inIncludeError(stack, fmt.Errorf("line %d: unknown include %q", a.Line, a.Name))
			}
			seen[a.Name] = true
			if err := p.expand(sb, src, seen, append(stack, a.Name)); err != nil {
				return err
			}
		case AnnotationTypeLayout:
			p.layouts = append(p.layouts, *a)
		}
	}
	return nil
}

func inIncludeError(stack []string, err error) error {
	if len(stack) == 0 {
		return err
	}
	return fmt.Errorf("in include %q: %w", stack[len(stack)-1], err)
}
