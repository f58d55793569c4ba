package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cloudwego/eino/components/model"
	"github.com/schollz/progressbar/v3"

	"github.com/quizmind/mcqa-go/internal/agent"
	"github.com/quizmind/mcqa-go/internal/corpus"
	"github.com/quizmind/mcqa-go/internal/embedder"
	"github.com/quizmind/mcqa-go/internal/extract"
	"github.com/quizmind/mcqa-go/internal/prompt"
	"github.com/quizmind/mcqa-go/internal/provider"
	"github.com/quizmind/mcqa-go/internal/rag"
	"github.com/quizmind/mcqa-go/internal/server"
	"github.com/quizmind/mcqa-go/internal/store"
)

const defaultQdrantCollection = "mcqa-corpus"

// retrievalStack carries everything buildRetrieval assembled, so commands can
// hand the same dependencies to the agent and to readiness probes.
type retrievalStack struct {
	// retriever is nil when retrieval is off (disabled, or no corpus
	// configured); the agent then answers from model knowledge alone.
	retriever agent.ContextRetriever

	// embedder is the embedding backend behind the retriever, nil when
	// retrieval is off.
	embedder embedder.Embedder

	// qdrant is set when the index lives in Qdrant rather than in memory.
	qdrant *rag.QdrantStore

	// close releases whatever the stack holds open. Never nil.
	close func()
}

// buildRetrieval assembles the retrieval stack from the environment: corpus
// file(s), embedder, embedding cache, vector index, and retriever tuning.
// Retrieval being off is not an error; the returned stack just carries a nil
// retriever.
func buildRetrieval(ctx context.Context, log *slog.Logger, showProgress bool) (*retrievalStack, error) {
	stack := &retrievalStack{close: func() {}}

	if getEnvBool("RAG_DISABLED", false) {
		log.Info("retrieval disabled via RAG_DISABLED")
		return stack, nil
	}

	corpusPath := os.Getenv("CORPUS_PATH")
	if corpusPath == "" && !qdrantEnabled() {
		log.Warn("no corpus configured, answering from model knowledge only",
			slog.String("hint", "set CORPUS_PATH to ground answers in a reference corpus"))
		return stack, nil
	}

	if err := embedder.ValidateForRAG(log); err != nil {
		return nil, err
	}

	emb, err := embedder.NewFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	stack.embedder = emb

	var index rag.Searcher
	if qdrantEnabled() {
		// The collection is populated by `mcqa index`; serving processes
		// only search it.
		qstore, err := openQdrant(ctx)
		if err != nil {
			return nil, err
		}
		stack.qdrant = qstore
		stack.close = func() { _ = qstore.Close() }
		index = qstore
		log.Info("retrieval backed by qdrant",
			slog.String("collection", getEnvOrDefault("QDRANT_COLLECTION", defaultQdrantCollection)))
	} else {
		chunks, report, err := buildCorpusChunks(ctx, log, emb, corpusBuildOptions{
			corpusPath:   corpusPath,
			chunkOverlap: -1,
			showProgress: showProgress,
		})
		if err != nil {
			return nil, err
		}
		mem, err := rag.NewMemoryIndex(chunks)
		if err != nil {
			return nil, err
		}
		index = mem
		log.Info("corpus indexed in memory",
			slog.Int("chunks", report.Embedded),
			slog.Bool("from_cache", report.FromCache))
	}

	retriever, err := rag.NewRetriever(&rag.RetrieverConfig{
		Embedder: emb,
		Index:    index,
		TopK:     getEnvInt("RAG_TOP_K", 0),
		MaxChars: getEnvInt("RAG_MAX_CHARS", 0),
		MinScore: getEnvFloat64("RAG_MIN_SCORE", 0),
	})
	if err != nil {
		stack.close()
		return nil, err
	}
	stack.retriever = retriever

	return stack, nil
}

// corpusBuildOptions selects the corpus and chunking parameters for
// buildCorpusChunks. Zero chunkSize and batchSize defer to the environment
// (CHUNK_SIZE, EMBED_BATCH_SIZE); chunkOverlap uses -1 for that, because an
// explicit zero turns overlap off.
type corpusBuildOptions struct {
	corpusPath   string
	chunkSize    int
	chunkOverlap int
	batchSize    int
	noCache      bool
	showProgress bool
}

// buildCorpusChunks reads the corpus and embeds it, serving vectors from the
// SQLite cache when the corpus content and embedding model are unchanged.
func buildCorpusChunks(ctx context.Context, log *slog.Logger, emb embedder.Embedder, opts corpusBuildOptions) ([]rag.Chunk, *corpus.BuildReport, error) {
	text, err := readCorpus(opts.corpusPath)
	if err != nil {
		return nil, nil, err
	}

	chunkSize := opts.chunkSize
	if chunkSize <= 0 {
		chunkSize = getEnvInt("CHUNK_SIZE", 0)
	}
	chunkOverlap := opts.chunkOverlap
	if chunkOverlap < 0 {
		chunkOverlap = getEnvInt("CHUNK_OVERLAP", -1)
	}
	batchSize := opts.batchSize
	if batchSize <= 0 {
		batchSize = getEnvInt("EMBED_BATCH_SIZE", 0)
	}

	cfg := &corpus.BuilderConfig{
		Embedder:     emb,
		Model:        emb.Model(),
		Source:       opts.corpusPath,
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		BatchSize:    batchSize,
	}

	if !opts.noCache {
		cache, closeCache := openEmbeddingCache(log)
		if cache != nil {
			cfg.Cache = cache
			defer closeCache()
		}
	}

	if opts.showProgress {
		// The bar is created lazily so a cache hit prints nothing.
		var bar *progressbar.ProgressBar
		cfg.Progress = func(done, total int) {
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionShowCount(),
					progressbar.OptionSetWidth(40),
					progressbar.OptionSetDescription("embedding corpus"),
					progressbar.OptionOnCompletion(func() {
						fmt.Fprintln(os.Stderr)
					}),
				)
			}
			_ = bar.Set(done)
		}
	}

	builder, err := corpus.NewBuilder(cfg)
	if err != nil {
		return nil, nil, err
	}
	return builder.Build(ctx, text)
}

// readCorpus reads the corpus selected by path, which may be a single file or
// a doublestar glob (e.g. "docs/**/*.md"). Matched files are concatenated in
// sorted order with blank-line separators so the content hash is stable.
func readCorpus(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("corpus: no path given")
	}
	if !strings.ContainsAny(path, "*?[{") {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("corpus: read %s: %w", path, err)
		}
		return string(data), nil
	}

	matches, err := doublestar.FilepathGlob(path)
	if err != nil {
		return "", fmt.Errorf("corpus: bad glob %q: %w", path, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("corpus: no files match %q", path)
	}
	sort.Strings(matches)

	var b strings.Builder
	for i, m := range matches {
		data, err := os.ReadFile(m)
		if err != nil {
			return "", fmt.Errorf("corpus: read %s: %w", m, err)
		}
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.Write(data)
	}
	return b.String(), nil
}

// openEmbeddingCache opens the SQLite embedding cache at MCQA_CACHE_DB or the
// default path. Failures disable caching with a warning rather than failing
// the build.
func openEmbeddingCache(log *slog.Logger) (*store.EmbeddingCache, func()) {
	path := os.Getenv("MCQA_CACHE_DB")
	if path == "" {
		p, err := store.DefaultCachePath()
		if err != nil {
			log.Warn("embedding cache: no usable path, caching disabled", slog.Any("error", err))
			return nil, func() {}
		}
		path = p
	}

	c, err := store.Open(path)
	if err != nil {
		log.Warn("embedding cache: open failed, caching disabled",
			slog.String("path", path), slog.Any("error", err))
		return nil, func() {}
	}
	log.Debug("embedding cache open", slog.String("path", path))
	return c, func() { _ = c.Close() }
}

// qdrantEnabled reports whether a Qdrant index is configured. Either the host
// or the collection being set switches the index from in-memory to Qdrant.
func qdrantEnabled() bool {
	return os.Getenv("QDRANT_HOST") != "" || os.Getenv("QDRANT_COLLECTION") != ""
}

// openQdrant connects to the configured Qdrant instance, sizing new
// collections to the embedding backend's dimensionality.
func openQdrant(ctx context.Context) (*rag.QdrantStore, error) {
	host := getEnvOrDefault("QDRANT_HOST", "localhost")
	port := getEnvInt("QDRANT_PORT", 6334)

	qstore, err := rag.NewQdrantStore(ctx, &rag.QdrantConfig{
		Host:       host,
		Port:       port,
		Collection: getEnvOrDefault("QDRANT_COLLECTION", defaultQdrantCollection),
		VectorSize: uint64(embedder.DefaultDimensions(embeddingBackend())), //nolint:gosec // dimensions are bounded
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", host, port, err)
	}
	return qstore, nil
}

// newAgent builds the answering agent with prompt and extraction behavior
// drawn from the environment.
func newAgent(chatModel model.BaseChatModel, retriever agent.ContextRetriever) (*agent.Agent, error) {
	return agent.New(&agent.Config{
		ChatModel: chatModel,
		Retriever: retriever,
		Extractor: extract.New(answerNumbering()),
		Exemplars: exemplarsFromEnv(),
		Reasoning: getEnvBool("PROMPT_REASONING", true),
	})
}

// buildPingers assembles the readiness probes for the serve command: the chat
// backend always, the embedding backend when retrieval is on, and Qdrant when
// it backs the index.
func buildPingers(chatModel model.BaseChatModel, providerCfg *provider.Config, stack *retrievalStack) []server.Pinger {
	pingers := []server.Pinger{
		server.NewLLMPinger(chatModel, string(providerCfg.Backend)),
	}
	if stack.embedder != nil {
		pingers = append(pingers, server.NewEmbedderPinger(stack.embedder, embeddingBackend()))
	}
	if stack.qdrant != nil {
		pingers = append(pingers, server.NewQdrantPinger(stack.qdrant))
	}
	return pingers
}

// answerNumbering maps ANSWER_NUMBERING onto the extractor's numeric
// convention: "one" reads bare digits as 1-based, anything else as 0-based.
func answerNumbering() extract.Numbering {
	if strings.EqualFold(os.Getenv("ANSWER_NUMBERING"), "one") {
		return extract.OneIndexed
	}
	return extract.ZeroIndexed
}

// exemplarsFromEnv resolves few-shot mode. Nil keeps the built-in exemplars;
// PROMPT_EXEMPLARS=false returns an empty slice, which disables them.
func exemplarsFromEnv() []prompt.Exemplar {
	if !getEnvBool("PROMPT_EXEMPLARS", true) {
		return []prompt.Exemplar{}
	}
	return nil
}

// embeddingBackend resolves the embedding provider name the same way the
// embedder factory does: EMBEDDING_PROVIDER, then MODEL_PROVIDER, then ollama.
func embeddingBackend() string {
	if v := os.Getenv("EMBEDDING_PROVIDER"); v != "" {
		return v
	}
	return getEnvOrDefault("MODEL_PROVIDER", "ollama")
}

// getEnvOrDefault returns the environment variable's value, or fallback when
// unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt parses an integer environment variable, returning fallback when
// unset or malformed.
func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// getEnvFloat64 parses a float environment variable, returning fallback when
// unset or malformed.
func getEnvFloat64(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

// getEnvBool parses a boolean environment variable ("true", "1", "false",
// "0", ...), returning fallback when unset or malformed.
func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
