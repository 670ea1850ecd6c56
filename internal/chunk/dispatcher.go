package chunk

// Dispatcher routes a file to the code chunker, the markdown chunker,
// or the line-window fallback based on its detected language.
type Dispatcher struct {
	code     *CodeChunker
	markdown MarkdownChunker
}

// NewDispatcher builds a Dispatcher with its own CodeChunker. Call
// Close when done to release tree-sitter resources.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{code: NewCodeChunker()}
}

// Close releases the underlying tree-sitter parser.
func (d *Dispatcher) Close() {
	d.code.Close()
}

// Chunk implements Chunker, dispatching by language.
func (d *Dispatcher) Chunk(path, language string, content []byte) ([]Draft, error) {
	switch language {
	case "markdown":
		return d.markdown.Chunk(path, language, content)
	case "go", "typescript", "tsx", "javascript", "python":
		return d.code.Chunk(path, language, content)
	default:
		return LineWindowChunk(path, language, content), nil
	}
}
