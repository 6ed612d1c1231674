package shader

import (
	"fmt"

	"github.com/gogpu/naga/wgsl"
)

// Validate lexes and parses source with naga. It catches syntax errors before a pipeline is
// created; semantic checks are left to the device.
//
// Parameters:
//   - source: pre-processed WGSL source
//
// Returns:
//   - error: the lexer or parser error, nil if the source parses
func Validate(source string) error {
	tokens, err := wgsl.NewLexer(source).Tokenize()
	if err != nil {
		return fmt.Errorf("wgsl tokenize: %w", err)
	}
	if _, err := wgsl.NewParser(tokens).Parse(); err != nil {
		return fmt.Errorf("wgsl parse: %w", err)
	}
	return nil
}
