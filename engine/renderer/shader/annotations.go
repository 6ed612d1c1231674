// annotations.go defines the @oxy: annotations understood by the pre-processor. Annotations
// are single-line WGSL comments, so annotated sources stay valid WGSL before processing.
package shader

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// annotationPrefix marks an annotation within a WGSL line comment.
const annotationPrefix = "@oxy:"

// AnnotationType identifies the kind of a parsed annotation.
type AnnotationType string

const (
	// AnnotationTypeInclude injects a registered WGSL source at the annotation site.
	//
	// Syntax: //@oxy:include <name>
	//
	// Example: //@oxy:include camera
	AnnotationTypeInclude AnnotationType = "include"

	// AnnotationTypeLayout declares which binding layout a group is written against. It
	// produces no WGSL; CheckLayouts compares it with the pipeline's layout for the group.
	//
	// Syntax: //@oxy:layout <group> <name>@v<version>
	//
	// Example: //@oxy:layout 0 resolve@v1
	AnnotationTypeLayout AnnotationType = "layout"
)

// layoutKeyRegex matches a layout key such as resolve@v1.
var layoutKeyRegex = regexp.MustCompile(`^([A-Za-z_][\w-]*)@v(\d+)$`)

// Annotation is one parsed @oxy: annotation.
type Annotation struct {
	Type AnnotationType

	// Line is the 1-based line in the source the annotation was read from.
	Line int

	// Name is the include name for include annotations and the layout name for layout
	// annotations.
	Name string

	// Group and Version apply to layout annotations.
	Group   int
	Version int
}

// LayoutKey returns name@vN for layout annotations.
func (a Annotation) LayoutKey() string {
	return fmt.Sprintf("%s@v%d", a.Name, a.Version)
}

// parseAnnotation parses line as an annotation. Lines without the prefix return nil and no
// error.
//
// Parameters:
//   - line: the raw WGSL source line
//   - lineNum: the 1-based line number for error reporting
//
// Returns:
//   - *Annotation: the annotation, or nil
//   - error: an error if the line carries the prefix but is malformed
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	trimmed := strings.TrimSpace(line)
	comment, ok := strings.CutPrefix(trimmed, "//")
	if !ok {
		return nil, nil
	}
	after, ok := strings.CutPrefix(strings.TrimSpace(comment), annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty @oxy annotation", lineNum)
	}

	switch AnnotationType(args[0]) {
	case AnnotationTypeInclude:
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy:include takes exactly one name", lineNum)
		}
		return &Annotation{Type: AnnotationTypeInclude, Line: lineNum, Name: args[1]}, nil
	case AnnotationTypeLayout:
		if len(args) != 3 {
			return nil, fmt.Errorf("line %d: @oxy:layout takes a group and a layout key", lineNum)
		}
		group, err := strconv.Atoi(args[1])
		if err != nil || group < 0 {
			return nil, fmt.Errorf("line %d: invalid group %q in @oxy:layout", lineNum, args[1])
		}
		m := layoutKeyRegex.FindStringSubmatch(args[2])
		if m == nil {
			return nil, fmt.Errorf("line %d: invalid layout key %q in @oxy:layout, want name@vN", lineNum, args[2])
		}
		version, _ := strconv.Atoi(m[2])
		return &Annotation{Type: AnnotationTypeLayout, Line: lineNum, Name: m[1], Group: group, Version: version}, nil
	default:
		return nil, fmt.Errorf("line %d: unknown @oxy annotation %q", lineNum, args[0])
	}
}
