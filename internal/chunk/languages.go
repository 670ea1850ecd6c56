package chunk

import (
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/codesearch-dev/codesearch/internal/model"
)

// LanguageConfig maps a language's tree-sitter node type names onto
// the Kind taxonomy from spec.md §3.
type LanguageConfig struct {
	Name           string
	FunctionTypes  []string
	MethodTypes    []string
	ClassTypes     []string
	InterfaceTypes []string
	TypeDefTypes   []string
	NameField      string
}

// LanguageRegistry holds the supported tree-sitter grammars and their
// Kind mappings.
type LanguageRegistry struct {
	mu      sync.RWMutex
	configs map[string]*LanguageConfig
	langs   map[string]*sitter.Language
}

func newLanguageRegistry() *LanguageRegistry {
	r := &LanguageRegistry{
		configs: make(map[string]*LanguageConfig),
		langs:   make(map[string]*sitter.Language),
	}
	r.register(&LanguageConfig{
		Name:          "go",
		FunctionTypes: []string{"function_declaration"},
		MethodTypes:   []string{"method_declaration"},
		TypeDefTypes:  []string{"type_declaration"},
		NameField:     "name",
	}, golang.GetLanguage())

	tsConfig := &LanguageConfig{
		Name:           "typescript",
		FunctionTypes:  []string{"function_declaration"},
		MethodTypes:    []string{"method_definition"},
		ClassTypes:     []string{"class_declaration"},
		InterfaceTypes: []string{"interface_declaration"},
		TypeDefTypes:   []string{"type_alias_declaration"},
		NameField:      "name",
	}
	r.register(tsConfig, typescript.GetLanguage())
	r.register(&LanguageConfig{
		Name:           "tsx",
		FunctionTypes:  tsConfig.FunctionTypes,
		MethodTypes:    tsConfig.MethodTypes,
		ClassTypes:     tsConfig.ClassTypes,
		InterfaceTypes: tsConfig.InterfaceTypes,
		TypeDefTypes:   tsConfig.TypeDefTypes,
		NameField:      tsConfig.NameField,
	}, tsx.GetLanguage())

	r.register(&LanguageConfig{
		Name:          "javascript",
		FunctionTypes: []string{"function_declaration", "function"},
		MethodTypes:   []string{"method_definition"},
		ClassTypes:    []string{"class_declaration"},
		NameField:     "name",
	}, javascript.GetLanguage())

	r.register(&LanguageConfig{
		Name:          "python",
		FunctionTypes: []string{"function_definition"},
		ClassTypes:    []string{"class_definition"},
		NameField:     "name",
	}, python.GetLanguage())

	return r
}

func (r *LanguageRegistry) register(cfg *LanguageConfig, lang *sitter.Language) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.Name] = cfg
	r.langs[cfg.Name] = lang
}

func (r *LanguageRegistry) ByName(name string) (*LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.configs[name]
	return c, ok
}

func (r *LanguageRegistry) TreeSitterLanguage(name string) (*sitter.Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.langs[name]
	return l, ok
}

var defaultRegistry = newLanguageRegistry()

// DefaultRegistry returns the package-wide language registry.
func DefaultRegistry() *LanguageRegistry { return defaultRegistry }

// kindForNodeType maps a tree-sitter node type, per the owning
// language's config, onto the model.Kind taxonomy.
func kindForNodeType(cfg *LanguageConfig, nodeType string) (model.Kind, bool) {
	for _, t := range cfg.FunctionTypes {
		if t == nodeType {
			return model.KindFunction, true
		}
	}
	for _, t := range cfg.MethodTypes {
		if t == nodeType {
			return model.KindMethod, true
		}
	}
	for _, t := range cfg.ClassTypes {
		if t == nodeType {
			return model.KindClass, true
		}
	}
	for _, t := range cfg.InterfaceTypes {
		if t == nodeType {
			return model.KindInterface, true
		}
	}
	for _, t := range cfg.TypeDefTypes {
		if t == nodeType {
			return model.KindStruct, true
		}
	}
	return "", false
}
